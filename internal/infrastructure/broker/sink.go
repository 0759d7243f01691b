package broker

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownSink = errors.New("broker: unknown sink")

// Message is one encoded domain event on its way to a broker.
type Message struct {
	Name string
	Key  string
	Body []byte
	Time time.Time
}

// Sink delivers messages to an external broker.
type Sink interface {
	// Name is the low-cardinality peer label used in metrics.
	Name() string
	Send(ctx context.Context, msg Message) error
	Close() error
}
