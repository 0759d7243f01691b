package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
)

type productSeed struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

type customerSeed struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Data is the content of a seed file.
type Data struct {
	Products  []productSeed  `json:"products"`
	Customers []customerSeed `json:"customers"`
}

func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	return &d, nil
}

// Apply writes every product and customer, replacing existing ones by id.
func Apply(ctx context.Context, d *Data, products catalog.Repository, customers customer.Registry) error {
	for _, ps := range d.Products {
		p, err := catalog.NewProduct(ps.ID, ps.Name, ps.Price, ps.Stock)
		if err != nil {
			return fmt.Errorf("seed: product %q: %w", ps.ID, err)
		}
		p.Image, p.Category = ps.Image, ps.Category
		if err := products.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("seed: save product %q: %w", ps.ID, err)
		}
	}
	if customers == nil {
		return nil
	}
	for _, cs := range d.Customers {
		c := &customer.Customer{ID: cs.ID, Name: cs.Name, Email: cs.Email, Address: cs.Address}
		if err := customers.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed: save customer %q: %w", cs.ID, err)
		}
	}
	return nil
}
