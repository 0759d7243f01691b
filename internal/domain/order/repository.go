package order

import (
	"context"
	"time"
)

// ListFilter narrows List. A zero filter returns every order.
type ListFilter struct {
	OwnerID string
	Limit   int
}

// Repository persists orders. Orders are never deleted.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// List returns matching orders newest first.
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
	// UpdateStatus sets the status only while the stored status still equals from.
	// It returns ErrConflict when another writer moved the order first.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}
