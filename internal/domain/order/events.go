package order

import "time"

// EventLine is the product/quantity part of a line carried in events.
type EventLine struct {
	ProductID string
	Quantity  int
}

func eventLines(items []LineItem) []EventLine {
	out := make([]EventLine, 0, len(items))
	for _, l := range items {
		out = append(out, EventLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

// OrderPlacedEvent is emitted once an order and its reservations are committed.
type OrderPlacedEvent struct {
	OrderID     string
	OwnerID     string
	Lines       []EventLine
	TotalAmount int64
	OccurredAt  time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func (e OrderPlacedEvent) EventKey() string { return e.OrderID }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:     o.ID,
		OwnerID:     o.OwnerID,
		Lines:       eventLines(o.Items),
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted for every persisted status change.
type OrderStatusChangedEvent struct {
	OrderID    string
	OwnerID    string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func (e OrderStatusChangedEvent) EventKey() string { return e.OrderID }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent lists the lines whose stock was returned on cancellation.
type OrderCancelledEvent struct {
	OrderID    string
	OwnerID    string
	Restocked  []EventLine
	Skipped    []EventLine
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func (e OrderCancelledEvent) EventKey() string { return e.OrderID }

func NewOrderCancelledEvent(o *Order, restocked, skipped []LineItem) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		Restocked:  eventLines(restocked),
		Skipped:    eventLines(skipped),
		OccurredAt: time.Now().UTC(),
	}
}
