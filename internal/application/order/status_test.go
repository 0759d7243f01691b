package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/identity"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
)

func placeOne(t *testing.T, f *fixture, owner string, lines ...cart.Line) *domain.Order {
	t.Helper()
	o, err := f.svc.PlaceOrder(customerCtx(owner), PlaceOrderInput{ShippingAddress: "addr", Items: lines})
	require.NoError(t, err)
	return o
}

func TestCancelRestoresStockOnce(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10), product(t, "B", 10, 5))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 3}, cart.Line{ProductID: "B", Quantity: 1})
	require.Equal(t, 7, f.stock(t, "A"))

	got, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 10, f.stock(t, "A"))
	assert.Equal(t, 5, f.stock(t, "B"))

	again, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "CANCELLED"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, again.Status)
	assert.Equal(t, 10, f.stock(t, "A"))
	assert.Equal(t, 5, f.stock(t, "B"))

	cancelled := f.events.named("order.cancelled")
	require.Len(t, cancelled, 1)
	evt := cancelled[0].(domain.OrderCancelledEvent)
	assert.Len(t, evt.Restocked, 2)
	assert.Empty(t, evt.Skipped)
	assert.Len(t, f.events.named("order.status_changed"), 1)
}

func TestCancelledOrderCannotMove(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 1})

	_, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "shipped"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, 10, f.stock(t, "A"))
}

func TestActiveStatusesMoveWithoutStockChange(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 2})

	for _, s := range []string{"shipped", "pending", "delivered", "confirmed"} {
		got, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: s})
		require.NoError(t, err, s)
		assert.Equal(t, domain.Status(s), got.Status)
		assert.Equal(t, 8, f.stock(t, "A"))
	}
	assert.Len(t, f.events.named("order.status_changed"), 4)
	assert.Empty(t, f.events.named("order.cancelled"))
}

func TestUpdateStatusRejects(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 1})

	_, err := f.svc.UpdateStatus(customerCtx("alice"), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.ErrorIs(t, err, identity.ErrForbidden)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "lost"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: "missing", Status: "shipped"})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 9, f.stock(t, "A"))
}

func TestCancelSkipsVanishedProducts(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10))
	now := time.Now().UTC()
	o := &domain.Order{
		ID:      "legacy-1",
		OwnerID: "alice",
		Items: []domain.LineItem{
			{ProductID: "A", Name: "a", Price: 5, Quantity: 2},
			{ProductID: "retired", Name: "r", Price: 1, Quantity: 4},
		},
		TotalAmount:     14,
		ShippingAddress: "addr",
		Status:          domain.StatusConfirmed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.orders.Insert(context.Background(), o))

	got, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 12, f.stock(t, "A"))

	cancelled := f.events.named("order.cancelled")
	require.Len(t, cancelled, 1)
	evt := cancelled[0].(domain.OrderCancelledEvent)
	assert.Equal(t, []domain.EventLine{{ProductID: "A", Quantity: 2}}, evt.Restocked)
	assert.Equal(t, []domain.EventLine{{ProductID: "retired", Quantity: 4}}, evt.Skipped)
}

func TestConcurrentCancelsRestockOnce(t *testing.T) {
	const admins = 8
	f := newFixture(t, product(t, "A", 5, 10))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 4})

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.UpdateStatus(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 10, f.stock(t, "A"))
	assert.Len(t, f.events.named("order.cancelled"), 1)
}

func TestUpdateStatusGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 4})

	repo := &mockRepository{}
	repo.On("Get", mock.Anything, o.ID).Return(o, nil).Times(maxStatusAttempts)
	repo.On("UpdateStatus", mock.Anything, o.ID, domain.StatusPending, domain.StatusCancelled, mock.AnythingOfType("time.Time")).
		Return(domain.ErrConflict).Times(maxStatusAttempts)
	deps := f.deps
	deps.Orders = repo

	_, err := NewUpdateStatusUseCase(deps).Execute(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.ErrorIs(t, err, ErrConflict)
	repo.AssertExpectations(t)

	assert.Equal(t, 6, f.stock(t, "A"))
	assert.Empty(t, f.events.named("order.cancelled"))
}

func TestUpdateStatusRetriesAfterLostRace(t *testing.T) {
	f := newFixture(t, product(t, "A", 5, 10))
	o := placeOne(t, f, "alice", cart.Line{ProductID: "A", Quantity: 4})

	shipped := o.Clone()
	shipped.Status = domain.StatusShipped

	repo := &mockRepository{}
	repo.On("Get", mock.Anything, o.ID).Return(o, nil).Once()
	repo.On("UpdateStatus", mock.Anything, o.ID, domain.StatusPending, domain.StatusCancelled, mock.Anything).
		Return(domain.ErrConflict).Once()
	repo.On("Get", mock.Anything, o.ID).Return(shipped, nil).Once()
	repo.On("UpdateStatus", mock.Anything, o.ID, domain.StatusShipped, domain.StatusCancelled, mock.Anything).
		Return(nil).Once()
	deps := f.deps
	deps.Orders = repo

	got, err := NewUpdateStatusUseCase(deps).Execute(adminCtx(), UpdateStatusInput{OrderID: o.ID, Status: "cancelled"})
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 10, f.stock(t, "A"))

	changed := f.events.named("order.status_changed")
	require.NotEmpty(t, changed)
	last := changed[len(changed)-1].(domain.OrderStatusChangedEvent)
	assert.Equal(t, domain.StatusShipped, last.From)
}
