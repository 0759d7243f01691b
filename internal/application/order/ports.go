package order

import (
	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
)

type IDGenerator interface {
	NewID() string
}

// Dependencies are the collaborators shared by the order use cases.
// Customers and Publisher may be nil.
type Dependencies struct {
	Orders    domain.Repository
	Catalog   catalog.Reader
	Ledger    inventory.Ledger
	Carts     cart.Reader
	Customers customer.Directory
	IDs       IDGenerator
	Publisher domoutbox.Publisher
	Telemetry observability.Observability
}
