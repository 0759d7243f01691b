package broker

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes every message to one topic keyed by the aggregate id, so
// events of one order stay on one partition.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink builds a sink for a comma separated broker list.
func NewKafkaSink(brokersCSV, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(brokersCSV)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Body,
		Time:  msg.Time,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Name)},
		},
	})
}

func (s *KafkaSink) Close() error { return s.w.Close() }

func splitBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
