package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dominv "github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
)

var occurred = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

type unknownEvent struct{}

func (unknownEvent) EventName() string { return "test.unknown" }

func TestEncodeOrderPlaced(t *testing.T) {
	msg, err := Encode(domorder.OrderPlacedEvent{
		OrderID:     "o-1",
		OwnerID:     "alice",
		Lines:       []domorder.EventLine{{ProductID: "A", Quantity: 3}},
		TotalAmount: 15,
		OccurredAt:  occurred,
	})
	require.NoError(t, err)

	assert.Equal(t, "order.placed", msg.Name)
	assert.Equal(t, "o-1", msg.Key)
	assert.Equal(t, occurred, msg.Time)
	assert.JSONEq(t, `{
		"event": "order.placed",
		"key": "o-1",
		"occurred_at": "2026-05-04T03:02:01Z",
		"payload": {
			"order_id": "o-1",
			"owner_id": "alice",
			"lines": [{"product_id": "A", "quantity": 3}],
			"total_amount": 15
		}
	}`, string(msg.Body))
}

func TestEncodeCancelledAndLowStock(t *testing.T) {
	msg, err := Encode(domorder.OrderCancelledEvent{
		OrderID:    "o-2",
		OwnerID:    "bob",
		Restocked:  []domorder.EventLine{{ProductID: "A", Quantity: 1}},
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	var env struct {
		Event   string
		Payload struct {
			Restocked []map[string]any `json:"restocked"`
			Skipped   []map[string]any `json:"skipped"`
		}
	}
	require.NoError(t, json.Unmarshal(msg.Body, &env))
	assert.Equal(t, "order.cancelled", env.Event)
	assert.Len(t, env.Payload.Restocked, 1)
	assert.NotNil(t, env.Payload.Skipped)
	assert.Empty(t, env.Payload.Skipped)

	msg, err = Encode(dominv.NewLowStockEvent("A", "Apple", 2, 5))
	require.NoError(t, err)
	assert.Equal(t, "A", msg.Key)
	assert.Equal(t, "inventory.low_stock", msg.Name)

	_, err = Encode(unknownEvent{})
	require.Error(t, err)
}

type fakeSink struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type handlerTable map[string]domoutbox.Handler

func (h handlerTable) Subscribe(name string, fn domoutbox.Handler) { h[name] = fn }

func TestRelaySubscribesAndForwards(t *testing.T) {
	sink := &fakeSink{}
	subs := handlerTable{}
	NewRelay(sink, subs, nil).Start()

	for _, name := range RelayedEvents {
		assert.Contains(t, subs, name)
	}

	evt := domorder.OrderStatusChangedEvent{OrderID: "o-1", From: "pending", To: "shipped", OccurredAt: occurred}
	require.NoError(t, subs[evt.EventName()](context.Background(), evt))
	require.Len(t, sink.sent, 1)
	assert.Equal(t, "order.status_changed", sink.sent[0].Name)

	sink.err = errors.New("broker unavailable")
	require.ErrorIs(t, subs[evt.EventName()](context.Background(), evt), sink.err)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{w: w}

	require.NoError(t, s.Send(context.Background(), Message{Name: "order.placed", Key: "o-9", Body: []byte(`{}`), Time: occurred}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("o-9"), w.msgs[0].Key)
	assert.Equal(t, []kafka.Header{{Key: "event", Value: []byte("order.placed")}}, w.msgs[0].Headers)

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, splitBrokers(""))
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	closed        bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPSinkRoutesByEventName(t *testing.T) {
	ch := &fakeChannel{}
	s := &AMQPSink{ch: ch, exchange: "minishop.events"}

	require.NoError(t, s.Send(context.Background(), Message{Name: "order.cancelled", Key: "o-3", Body: []byte(`{}`), Time: occurred}))
	assert.Equal(t, "minishop.events", ch.exchange)
	assert.Equal(t, "order.cancelled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "o-3", ch.msg.MessageId)

	require.NoError(t, s.Close())
	assert.True(t, ch.closed)
}
