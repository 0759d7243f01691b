package cart

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrMissingProduct  = errors.New("cart: product id is required")
	ErrMissingOwner    = errors.New("cart: owner id is required")
)

// Line is one (product, quantity) pair in a cart.
type Line struct {
	ProductID string
	Quantity  int
}

func (l Line) Validate() error {
	if strings.TrimSpace(l.ProductID) == "" {
		return ErrMissingProduct
	}
	if l.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Cart is the single cart of one owner. Lines keep insertion order.
type Cart struct {
	OwnerID   string
	Lines     []Line
	UpdatedAt time.Time
}

// Empty returns an empty cart for owner.
func Empty(ownerID string) *Cart {
	return &Cart{OwnerID: ownerID, Lines: []Line{}}
}

// Add merges l into the cart: an existing product line grows, a new one is appended.
func (c *Cart) Add(l Line) error {
	if err := l.Validate(); err != nil {
		return err
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == l.ProductID {
			c.Lines[i].Quantity += l.Quantity
			c.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	c.Lines = append(c.Lines, l)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line(nil), c.Lines...)
	return &clone
}

// Reader exposes the read/clear contract the order workflow consumes.
type Reader interface {
	Read(ctx context.Context, ownerID string) (*Cart, error)
	Clear(ctx context.Context, ownerID string) error
}

// Store adds the line mutation used by the cart endpoints.
type Store interface {
	Reader
	Add(ctx context.Context, ownerID string, line Line) (*Cart, error)
}
