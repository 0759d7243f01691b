package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
)

type CustomerDirectory struct {
	mu        sync.RWMutex
	customers map[string]customer.Customer
}

func NewCustomerDirectory(customers ...customer.Customer) *CustomerDirectory {
	d := &CustomerDirectory{customers: make(map[string]customer.Customer, len(customers))}
	for _, c := range customers {
		d.customers[c.ID] = c
	}
	return d
}

func (d *CustomerDirectory) FindCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (d *CustomerDirectory) SaveCustomer(ctx context.Context, c *customer.Customer) error {
	_ = ctx
	if c == nil || c.ID == "" {
		return customer.ErrMissingID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.customers[c.ID] = *c
	return nil
}
