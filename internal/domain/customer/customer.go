package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("customer: not found")
	ErrMissingID = errors.New("customer: id is required")
)

// Customer is the registered profile of an order owner.
type Customer struct {
	ID      string
	Name    string
	Email   string
	Address string
}

// Directory resolves customers by id.
type Directory interface {
	FindCustomer(ctx context.Context, id string) (*Customer, error)
}

// Registry is a Directory that can also record profiles.
type Registry interface {
	Directory
	SaveCustomer(ctx context.Context, c *Customer) error
}
