package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
)

// ProductStore keeps products in memory and doubles as the stock ledger.
// Every stock change happens under the write lock.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
}

func NewProductStore(products ...*catalog.Product) *ProductStore {
	s := &ProductStore{products: make(map[string]*catalog.Product, len(products))}
	for _, p := range products {
		if p != nil {
			s.products[p.ID] = p.Clone()
		}
	}
	return s
}

func (s *ProductStore) FindProduct(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

// SaveProduct creates or replaces a product.
func (s *ProductStore) SaveProduct(ctx context.Context, p *catalog.Product) error {
	_ = ctx
	if p == nil {
		return catalog.ErrMissingID
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p.Clone()
	return nil
}

// Products returns every product ordered by id.
func (s *ProductStore) Products(ctx context.Context) ([]*catalog.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProductStore) Reserve(ctx context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(quantity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return &inventory.NotFoundError{ProductID: productID}
	}
	if p.Stock < quantity {
		return &inventory.InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: quantity}
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *ProductStore) Restock(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if err := inventory.ValidateQuantity(quantity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return &inventory.NotFoundError{ProductID: productID}
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}
