package order

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/identity"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/observability/telemetry"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) named(name string) []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domoutbox.Event
	for _, e := range p.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type sequentialIDs struct{ n atomic.Int64 }

func (s *sequentialIDs) NewID() string { return fmt.Sprintf("order-%d", s.n.Add(1)) }

type fixture struct {
	products  *memory.ProductStore
	orders    *memory.OrderRepository
	carts     *memory.CartStore
	customers *memory.CustomerDirectory
	events    *recordingPublisher
	registry  *prometheus.Registry
	deps      Dependencies
	svc       *Service
}

func newFixture(t *testing.T, products ...*catalog.Product) *fixture {
	t.Helper()
	f := &fixture{
		products: memory.NewProductStore(products...),
		orders:   memory.NewOrderRepository(),
		carts:    memory.NewCartStore(),
		customers: memory.NewCustomerDirectory(
			customer.Customer{ID: "alice", Name: "Alice", Email: "alice@example.com", Address: "1 Apple Rd"},
			customer.Customer{ID: "bob", Name: "Bob", Email: "bob@example.com"},
		),
		events:   &recordingPublisher{},
		registry: prometheus.NewRegistry(),
	}
	counters, histograms := prometrics.Standard(prometrics.New(f.registry, "", ""))
	f.deps = Dependencies{
		Orders:    f.orders,
		Catalog:   f.products,
		Ledger:    f.products,
		Carts:     f.carts,
		Customers: f.customers,
		IDs:       &sequentialIDs{},
		Publisher: f.events,
		Telemetry: telemetry.New(nil, nil, counters, histograms),
	}
	f.svc = NewService(f.deps)
	return f
}

func product(t *testing.T, id string, price int64, stock int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(id, "product "+id, price, stock)
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.FindProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// counter reads one series of a counter from the fixture's registry.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func customerCtx(userID string) context.Context {
	return identity.WithCaller(context.Background(), identity.Caller{UserID: userID, Role: identity.RoleCustomer})
}

func adminCtx() context.Context {
	return identity.WithCaller(context.Background(), identity.Caller{UserID: "root", Role: identity.RoleAdmin})
}

// mockRepository lets a test script repository failures.
type mockRepository struct{ mock.Mock }

func (m *mockRepository) Insert(ctx context.Context, o *domain.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o.Clone(), args.Error(1)
}

func (m *mockRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	args := m.Called(ctx, filter)
	orders, _ := args.Get(0).([]*domain.Order)
	return orders, args.Error(1)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) error {
	return m.Called(ctx, id, from, to, at).Error(0)
}
