package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
)

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	Helper()
	require.TestingT
}

func newProduct(t tb, id string, price int64, stock int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(id, "product "+id, price, stock)
	require.NoError(t, err)
	return p
}

func stockOf(t tb, s *ProductStore, id string) int {
	t.Helper()
	p, err := s.FindProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestReserveDecrements(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newProduct(t, "A", 5, 10))

	require.NoError(t, s.Reserve(ctx, "A", 4))
	assert.Equal(t, 6, stockOf(t, s, "A"))
}

func TestReserveInsufficientLeavesStock(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newProduct(t, "A", 5, 3))

	err := s.Reserve(ctx, "A", 4)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var short *inventory.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, inventory.InsufficientStockError{ProductID: "A", Available: 3, Requested: 4}, *short)
	assert.Equal(t, 3, stockOf(t, s, "A"))
}

func TestReserveRejects(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newProduct(t, "A", 5, 3))

	require.ErrorIs(t, s.Reserve(ctx, "missing", 1), inventory.ErrNotFound)
	require.ErrorIs(t, s.Reserve(ctx, "A", 0), inventory.ErrInvalidQuantity)
	require.ErrorIs(t, s.Restock(ctx, "A", -1), inventory.ErrInvalidQuantity)
	require.ErrorIs(t, s.Restock(ctx, "missing", 1), inventory.ErrNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, s.Reserve(cancelled, "A", 1), context.Canceled)
	assert.Equal(t, 3, stockOf(t, s, "A"))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newProduct(t, "A", 5, 10))

	var wg sync.WaitGroup
	var won, lost atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := s.Reserve(ctx, "A", 6)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, inventory.ErrInsufficientStock):
				lost.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, int32(1), lost.Load())
	assert.Equal(t, 4, stockOf(t, s, "A"))
}

func TestFindProductReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newProduct(t, "A", 5, 10))

	p, err := s.FindProduct(ctx, "A")
	require.NoError(t, err)
	p.Stock = 0
	p.Price = 1

	again, err := s.FindProduct(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10, again.Stock)
	assert.Equal(t, int64(5), again.Price)

	_, err = s.FindProduct(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSaveProductAndList(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore()

	require.NoError(t, s.SaveProduct(ctx, newProduct(t, "B", 2, 1)))
	require.NoError(t, s.SaveProduct(ctx, newProduct(t, "A", 1, 1)))
	require.ErrorIs(t, s.SaveProduct(ctx, &catalog.Product{ID: "C", Name: "c", Stock: -1}), catalog.ErrInvalidStock)

	all, err := s.Products(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].ID)
	assert.Equal(t, "B", all[1].ID)
}

func TestLedgerStockNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		initial := rapid.IntRange(0, 50).Draw(rt, "initial")
		s := NewProductStore(newProduct(rt, "A", 1, initial))

		expected := initial
		ops := rapid.SliceOfN(rapid.IntRange(-20, 20), 1, 40).Draw(rt, "ops")
		for _, q := range ops {
			switch {
			case q > 0:
				err := s.Reserve(ctx, "A", q)
				if q <= expected {
					if err != nil {
						rt.Fatalf("reserve %d with %d available: %v", q, expected, err)
					}
					expected -= q
				} else if !errors.Is(err, inventory.ErrInsufficientStock) {
					rt.Fatalf("reserve %d with %d available: want insufficient stock, got %v", q, expected, err)
				}
			case q < 0:
				if err := s.Restock(ctx, "A", -q); err != nil {
					rt.Fatalf("restock %d: %v", -q, err)
				}
				expected += -q
			}
			if got := stockOf(rt, s, "A"); got != expected || got < 0 {
				rt.Fatalf("stock %d, expected %d", got, expected)
			}
		}
	})
}

func TestReserveThenRestockRoundTrips(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		initial := rapid.IntRange(1, 100).Draw(rt, "initial")
		q := rapid.IntRange(1, initial).Draw(rt, "quantity")
		s := NewProductStore(newProduct(rt, "A", 1, initial))

		if err := s.Reserve(ctx, "A", q); err != nil {
			rt.Fatalf("reserve: %v", err)
		}
		if err := s.Restock(ctx, "A", q); err != nil {
			rt.Fatalf("restock: %v", err)
		}
		if got := stockOf(rt, s, "A"); got != initial {
			rt.Fatalf("stock %d after round trip, want %d", got, initial)
		}
	})
}
