package order

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
)

var errConnReset = errors.New("connection reset")

// flakyLedger fails the first failures Restock calls, or every call when
// failures is negative. Reserve is passed through.
type flakyLedger struct {
	inventory.Ledger
	failures int64
	calls    atomic.Int64
}

func (l *flakyLedger) Restock(ctx context.Context, productID string, quantity int) error {
	n := l.calls.Add(1)
	if l.failures < 0 || n <= l.failures {
		return errConnReset
	}
	return l.Ledger.Restock(ctx, productID, quantity)
}

func withLedger(f *fixture, ledger inventory.Ledger) {
	f.deps.Ledger = ledger
	f.svc = NewService(f.deps)
}

func fastRestockBackoff(t *testing.T) {
	t.Helper()
	prev := restockBackoff
	restockBackoff = time.Millisecond
	t.Cleanup(func() { restockBackoff = prev })
}

func TestCancelRetriesTransientRestockFailure(t *testing.T) {
	fastRestockBackoff(t)
	f := newFixture(t, product(t, "A", 5, 5))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 2})
	ledger := &flakyLedger{Ledger: f.products, failures: 2}
	withLedger(f, ledger)

	got, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 5, f.stock(t, "A"))
	assert.Equal(t, int64(3), ledger.calls.Load())
	assert.Zero(t, f.counter(t, "order_restock_failures_total", nil))
}

func TestCancelReportsPersistentRestockFailure(t *testing.T) {
	fastRestockBackoff(t)
	f := newFixture(t, product(t, "A", 5, 5))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 2})
	ledger := &flakyLedger{Ledger: f.products, failures: -1}
	withLedger(f, ledger)

	_, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.ErrorIs(t, err, ErrRepository)
	require.ErrorIs(t, err, errConnReset)

	var restockErr *RestockError
	require.True(t, errors.As(err, &restockErr))
	assert.Equal(t, o.ID, restockErr.OrderID)
	require.Len(t, restockErr.Lines, 1)
	assert.Equal(t, "A", restockErr.Lines[0].ProductID)
	assert.Equal(t, 2, restockErr.Lines[0].Quantity)

	assert.Equal(t, int64(restockAttempts), ledger.calls.Load())
	assert.Equal(t, 3, f.stock(t, "A"))
	assert.Equal(t, 1.0, f.counter(t, "order_restock_failures_total", map[string]string{"use_case": useCaseUpdateStatus}))

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)

	cancelled := f.events.named("order.cancelled")
	require.Len(t, cancelled, 1)
	evt := cancelled[0].(domain.OrderCancelledEvent)
	assert.Empty(t, evt.Restocked)
	assert.Equal(t, []domain.EventLine{{ProductID: "A", Quantity: 2}}, evt.Skipped)
}

func TestPlaceOrderRetriesTransientReleaseFailure(t *testing.T) {
	fastRestockBackoff(t)
	f := newFixture(t, product(t, "A", 5, 5), product(t, "B", 10, 1))
	withLedger(f, &flakyLedger{Ledger: f.products, failures: 1})

	_, err := f.svc.PlaceOrder(customerCtx("alice"), PlaceOrderInput{
		ShippingAddress: "addr",
		Items:           []cart.Line{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 3}},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.NotErrorIs(t, err, ErrRepository)
	assert.Equal(t, 5, f.stock(t, "A"))
}

func TestPlaceOrderReportsFailedRelease(t *testing.T) {
	fastRestockBackoff(t)
	f := newFixture(t, product(t, "A", 5, 5), product(t, "B", 10, 1))
	withLedger(f, &flakyLedger{Ledger: f.products, failures: -1})

	_, err := f.svc.PlaceOrder(customerCtx("alice"), PlaceOrderInput{
		ShippingAddress: "addr",
		Items:           []cart.Line{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 3}},
	})
	require.ErrorIs(t, err, ErrRepository)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var restockErr *RestockError
	require.True(t, errors.As(err, &restockErr))
	assert.Empty(t, restockErr.OrderID)
	require.Len(t, restockErr.Lines, 1)
	assert.Equal(t, "A", restockErr.Lines[0].ProductID)

	assert.Equal(t, 1.0, f.counter(t, "order_restock_failures_total", map[string]string{"use_case": useCasePlaceOrder}))
	assert.Equal(t, 1.0, f.counter(t, "order_compensations_total", map[string]string{"reason": compensationStock}))

	orders, err := f.orders.List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
