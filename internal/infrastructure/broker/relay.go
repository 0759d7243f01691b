package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"
)

// RelayedEvents are the bus events forwarded to the broker.
var RelayedEvents = []string{
	domorder.OrderPlacedEvent{}.EventName(),
	domorder.OrderStatusChangedEvent{}.EventName(),
	domorder.OrderCancelledEvent{}.EventName(),
	dominv.LowStockEvent{}.EventName(),
}

// Relay forwards bus events to a Sink as JSON envelopes.
type Relay struct {
	sink       Sink
	subscriber domoutbox.Subscriber

	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewRelay(sink Sink, subscriber domoutbox.Subscriber, tel observability.Observability) *Relay {
	tel = observability.Or(tel)
	return &Relay{
		sink:         sink,
		subscriber:   subscriber,
		log:          tel.Logger().With(observability.F("component", "broker_relay"), observability.F("peer", sink.Name())),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (r *Relay) Start() {
	for _, name := range RelayedEvents {
		r.subscriber.Subscribe(name, r.forward)
	}
}

func (r *Relay) forward(ctx context.Context, e domoutbox.Event) error {
	msg, err := Encode(e)
	if err != nil {
		return err
	}

	start := time.Now()
	err = r.sink.Send(ctx, msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.extCounter.Add(1,
		observability.L("peer", r.sink.Name()),
		observability.L("endpoint", msg.Name),
		observability.L("outcome", outcome),
	)
	r.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", r.sink.Name()),
		observability.L("endpoint", msg.Name),
	)
	if err != nil {
		return fmt.Errorf("broker: send %s: %w", msg.Name, err)
	}

	logctx.FromOr(ctx, r.log).Debug("event_relayed",
		observability.F("event", msg.Name),
		observability.F("key", msg.Key),
	)
	return nil
}

type envelope struct {
	Event      string    `json:"event"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type lineDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderPlacedDTO struct {
	OrderID     string    `json:"order_id"`
	OwnerID     string    `json:"owner_id"`
	Lines       []lineDTO `json:"lines"`
	TotalAmount int64     `json:"total_amount"`
}

type statusChangedDTO struct {
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type cancelledDTO struct {
	OrderID   string    `json:"order_id"`
	OwnerID   string    `json:"owner_id"`
	Restocked []lineDTO `json:"restocked"`
	Skipped   []lineDTO `json:"skipped"`
}

type lowStockDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
}

// Encode turns a known domain event into a broker message.
func Encode(e domoutbox.Event) (Message, error) {
	var env envelope
	switch evt := e.(type) {
	case domorder.OrderPlacedEvent:
		env = envelope{Key: evt.EventKey(), OccurredAt: evt.OccurredAt, Payload: orderPlacedDTO{
			OrderID:     evt.OrderID,
			OwnerID:     evt.OwnerID,
			Lines:       lineDTOs(evt.Lines),
			TotalAmount: evt.TotalAmount,
		}}
	case domorder.OrderStatusChangedEvent:
		env = envelope{Key: evt.EventKey(), OccurredAt: evt.OccurredAt, Payload: statusChangedDTO{
			OrderID: evt.OrderID,
			OwnerID: evt.OwnerID,
			From:    string(evt.From),
			To:      string(evt.To),
		}}
	case domorder.OrderCancelledEvent:
		env = envelope{Key: evt.EventKey(), OccurredAt: evt.OccurredAt, Payload: cancelledDTO{
			OrderID:   evt.OrderID,
			OwnerID:   evt.OwnerID,
			Restocked: lineDTOs(evt.Restocked),
			Skipped:   lineDTOs(evt.Skipped),
		}}
	case dominv.LowStockEvent:
		env = envelope{Key: evt.EventKey(), OccurredAt: evt.OccurredAt, Payload: lowStockDTO{
			ProductID: evt.ProductID,
			Name:      evt.Name,
			Available: evt.Available,
			Threshold: evt.Threshold,
		}}
	default:
		return Message{}, fmt.Errorf("broker: no encoding for event %q", e.EventName())
	}
	env.Event = e.EventName()

	body, err := json.Marshal(env)
	if err != nil {
		return Message{}, fmt.Errorf("broker: marshal %s: %w", env.Event, err)
	}
	return Message{Name: env.Event, Key: env.Key, Body: body, Time: env.OccurredAt}, nil
}

func lineDTOs(lines []domorder.EventLine) []lineDTO {
	out := make([]lineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineDTO{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
