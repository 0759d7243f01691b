package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog: product not found")
	ErrInvalidPrice = errors.New("catalog: price must be zero or greater")
	ErrInvalidStock = errors.New("catalog: stock must be zero or greater")
	ErrMissingID    = errors.New("catalog: product id is required")
	ErrMissingName  = errors.New("catalog: product name is required")
)

// Product is a sellable item. Price is in minor currency units.
// Stock is only ever changed through the inventory ledger.
type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int
	Image     string
	Category  string
	UpdatedAt time.Time
}

func NewProduct(id, name string, price int64, stock int) (*Product, error) {
	p := &Product{
		ID:        strings.TrimSpace(id),
		Name:      strings.TrimSpace(name),
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Validate() error {
	switch {
	case p.ID == "":
		return ErrMissingID
	case p.Name == "":
		return ErrMissingName
	case p.Price < 0:
		return ErrInvalidPrice
	case p.Stock < 0:
		return ErrInvalidStock
	}
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Reader looks products up by id.
type Reader interface {
	FindProduct(ctx context.Context, id string) (*Product, error)
}

// Repository is the catalog store used for seeding and price/name edits.
type Repository interface {
	Reader
	SaveProduct(ctx context.Context, p *Product) error
}
