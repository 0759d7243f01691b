package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
)

const restockAttempts = 3

// restockBackoff is the pause before the second restock attempt; it doubles after that.
var restockBackoff = 25 * time.Millisecond

// RestockError lists lines whose stock could not be handed back to the ledger.
// OrderID is empty when the lines belonged to a placement that was never stored.
// It matches ErrRepository under errors.Is.
type RestockError struct {
	OrderID string
	Lines   []domain.LineItem
	Err     error
}

func (e *RestockError) Error() string {
	ids := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		ids = append(ids, fmt.Sprintf("%s x%d", l.ProductID, l.Quantity))
	}
	if e.OrderID != "" {
		return fmt.Sprintf("order: restock failed for order %s %v: %v", e.OrderID, ids, e.Err)
	}
	return fmt.Sprintf("order: releasing reservations failed %v: %v", ids, e.Err)
}

func (e *RestockError) Unwrap() []error { return []error{ErrRepository, e.Err} }

// restockLine returns quantity to the ledger, retrying storage failures with
// exponential backoff. Missing products and invalid quantities are final.
func restockLine(ctx context.Context, ledger inventory.Ledger, productID string, quantity int) error {
	var err error
	for attempt := 1; attempt <= restockAttempts; attempt++ {
		err = ledger.Restock(ctx, productID, quantity)
		if err == nil || errors.Is(err, inventory.ErrNotFound) || errors.Is(err, inventory.ErrInvalidQuantity) {
			return err
		}
		if attempt < restockAttempts {
			time.Sleep(restockBackoff << (attempt - 1))
		}
	}
	return err
}
