package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/infrastructure/memory"
)

const sample = `{
	"products": [
		{"id": "A", "name": "Apple", "price": 5, "stock": 10, "category": "fruit"},
		{"id": "B", "name": "Banana", "price": 10, "stock": 5}
	],
	"customers": [
		{"id": "alice", "name": "Alice", "email": "alice@example.com", "address": "1 Apple Rd"}
	]
}`

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	d, err := Load(path)
	require.NoError(t, err)
	require.Len(t, d.Products, 2)

	ctx := context.Background()
	products := memory.NewProductStore()
	customers := memory.NewCustomerDirectory()
	require.NoError(t, Apply(ctx, d, products, customers))

	a, err := products.FindProduct(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10, a.Stock)
	assert.Equal(t, "fruit", a.Category)

	alice, err := customers.FindCustomer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1 Apple Rd", alice.Address)
}

func TestApplyRejectsInvalidProduct(t *testing.T) {
	d, err := Parse([]byte(`{"products": [{"id": "A", "name": "Apple", "price": -1, "stock": 1}]}`))
	require.NoError(t, err)

	err = Apply(context.Background(), d, memory.NewProductStore(), nil)
	require.ErrorIs(t, err, catalog.ErrInvalidPrice)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"products": [`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
