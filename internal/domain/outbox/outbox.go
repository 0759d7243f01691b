package outbox

import "context"

// Event is a named domain fact such as order.placed or inventory.low_stock.
type Event interface {
	EventName() string
}

// Handler reacts to one delivered event. Returned errors are logged by the bus, never retried.
type Handler func(ctx context.Context, e Event) error

// Middleware decorates the handler subscribed under eventName.
type Middleware func(eventName string, next Handler) Handler

// Publisher hands events to the bus. Publishing never blocks past ctx.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers per event name; several handlers may share a name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
