package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
)

type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*cart.Cart
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*cart.Cart)}
}

// Read returns the owner's cart; an owner without one gets an empty cart.
func (s *CartStore) Read(ctx context.Context, ownerID string) (*cart.Cart, error) {
	_ = ctx
	if strings.TrimSpace(ownerID) == "" {
		return nil, cart.ErrMissingOwner
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[ownerID]
	if !ok {
		return cart.Empty(ownerID), nil
	}
	return c.Clone(), nil
}

func (s *CartStore) Add(ctx context.Context, ownerID string, line cart.Line) (*cart.Cart, error) {
	_ = ctx
	if strings.TrimSpace(ownerID) == "" {
		return nil, cart.ErrMissingOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[ownerID]
	if !ok {
		c = cart.Empty(ownerID)
	}
	next := c.Clone()
	if err := next.Add(line); err != nil {
		return nil, err
	}
	s.carts[ownerID] = next
	return next.Clone(), nil
}

func (s *CartStore) Clear(ctx context.Context, ownerID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, ownerID)
	return nil
}
