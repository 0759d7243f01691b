package inventory

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError reports how much stock a failed reservation saw.
// It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NotFoundError names the product a ledger call could not find.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("inventory: product %s not found", e.ProductID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Ledger owns the authoritative available quantity of every product.
//
// Reserve must check and decrement as one atomic step: two concurrent
// reservations that together exceed the stock can never both succeed.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Restock(ctx context.Context, productID string, quantity int) error
}

// ValidateQuantity rejects non-positive ledger quantities.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
