package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	amqpExchangeType = "topic"
	amqpDialAttempts = 5
	amqpDialBackoff  = 2 * time.Second
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes every message to a durable topic exchange with the event
// name as routing key.
type AMQPSink struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

// DialAMQP connects to url, retrying while the broker starts, and declares exchange.
func DialAMQP(ctx context.Context, url, exchange string) (*AMQPSink, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= amqpDialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if attempt == amqpDialAttempts {
			return nil, fmt.Errorf("broker: amqp dial: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("broker: amqp dial: %w", ctx.Err())
		case <-time.After(amqpDialBackoff):
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broker: amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,         // name
		amqpExchangeType, // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("broker: amqp declare exchange %s: %w", exchange, err)
	}

	return &AMQPSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ch.PublishWithContext(ctx,
		s.exchange, // exchange
		msg.Name,   // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.Key,
			Type:         msg.Name,
			Timestamp:    msg.Time,
			Body:         msg.Body,
		},
	)
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chErr := s.ch.Close()
	if s.conn == nil {
		return chErr
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	return chErr
}
