package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/application"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/identity"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCasePlaceOrder  = "order.place"
	compensationLookup = "product_lookup_failed"
	compensationStock  = "reserve_failed"
	compensationBuild  = "order_build_failed"
	compensationInsert = "order_insert_failed"
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
	ErrValidation = errors.New("order: validation failed")
)

// PlaceOrderUseCase turns the caller's cart into a pending order. Stock for
// every line is reserved in input order; if any step fails, reservations
// already taken by this request are handed back before the error returns.
type PlaceOrderUseCase struct {
	repo        domain.Repository
	catalog     catalog.Reader
	ledger      inventory.Ledger
	carts       cart.Reader
	customers   customer.Directory
	idGenerator IDGenerator
	publisher   domoutbox.Publisher

	obs             application.Instruments
	compensations   observability.Counter // order_compensations_total{reason}
	restockFailures observability.Counter // order_restock_failures_total{use_case}
}

func NewPlaceOrderUseCase(deps Dependencies) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		repo:            deps.Orders,
		catalog:         deps.Catalog,
		ledger:          deps.Ledger,
		carts:           deps.Carts,
		customers:       deps.Customers,
		idGenerator:     deps.IDs,
		publisher:       deps.Publisher,
		obs:             application.NewInstruments(deps.Telemetry, orderService),
		compensations:   observability.Or(deps.Telemetry).Metrics().Counter(observability.MOrderCompensations),
		restockFailures: observability.Or(deps.Telemetry).Metrics().Counter(observability.MRestockFailures),
	}
}

type PlaceOrderInput struct {
	PaymentMethod   string
	ShippingAddress string
	// Items overrides the stored cart when non-nil.
	Items []cart.Line
}

// Execute performs the order placement flow for the caller found on ctx.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *domain.Order, err error) {
	logger := logctx.FromOr(ctx, uc.obs.Log).With(observability.F("use_case", useCasePlaceOrder))

	var orderID string
	var publishErr error

	ctx, span := uc.obs.Tracer.Start(ctx, application.SpanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := uc.obs.Observe(useCasePlaceOrder, outcome, start)
		application.EndSpan(span, err, statusText)

		fields := application.DoneFields(ctx, outcome, statusText, lat, err)
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	caller, err := identity.Require(ctx, identity.CapPlaceOrder)
	if err != nil {
		outcome, statusText = "error", "UNAUTHORIZED"
		return nil, err
	}
	logger = logger.With(observability.F("owner_id", caller.UserID))
	span.SetAttributes(attribute.String("order.owner_id", caller.UserID))

	lines := cmd.Items
	if lines == nil {
		c, readErr := uc.carts.Read(ctx, caller.UserID)
		if readErr != nil {
			outcome, statusText = "error", "CART_READ_FAILED"
			return nil, fmt.Errorf("%w: read cart: %w", ErrRepository, readErr)
		}
		lines = c.Lines
	}
	if len(lines) == 0 {
		outcome, statusText = "error", "EMPTY_CART"
		return nil, domain.ErrEmptyCart
	}
	for _, l := range lines {
		if verr := l.Validate(); verr != nil {
			outcome, statusText = "error", "LINE_INVALID"
			return nil, newValidation(verr.Error())
		}
	}

	address, err := uc.shippingAddress(ctx, caller.UserID, cmd.ShippingAddress)
	if err != nil {
		outcome, statusText = "error", "CUSTOMER_LOOKUP_FAILED"
		return nil, err
	}
	if address == "" {
		outcome, statusText = "error", "SHIPPING_ADDRESS_MISSING"
		return nil, domain.ErrMissingShippingAddress
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	reserved := make([]domain.LineItem, 0, len(lines))
	for _, l := range lines {
		p, lookupErr := uc.catalog.FindProduct(ctx, l.ProductID)
		if lookupErr != nil {
			if errors.Is(lookupErr, catalog.ErrNotFound) {
				outcome, statusText = "error", "PRODUCT_NOT_FOUND"
				return nil, uc.abort(ctx, logger, reserved, compensationLookup, &inventory.NotFoundError{ProductID: l.ProductID})
			}
			outcome, statusText = "error", "PRODUCT_LOOKUP_FAILED"
			return nil, uc.abort(ctx, logger, reserved, compensationLookup,
				fmt.Errorf("%w: find product %s: %w", ErrRepository, l.ProductID, lookupErr))
		}

		if resErr := uc.ledger.Reserve(ctx, p.ID, l.Quantity); resErr != nil {
			outcome, statusText = "error", reserveStatus(resErr)
			return nil, uc.abort(ctx, logger, reserved, compensationStock, classifyReserveError(p.ID, resErr))
		}

		reserved = append(reserved, domain.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  l.Quantity,
			Image:     p.Image,
		})
		span.AddEvent("inventory.reserved",
			trace.WithAttributes(
				attribute.String("product.id", p.ID),
				attribute.Int("quantity", l.Quantity),
			),
		)
	}

	orderID = uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, caller.UserID, reserved, cmd.PaymentMethod, address)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, uc.abort(ctx, logger, reserved, compensationBuild, fmt.Errorf("order: construct: %w", derr))
	}
	if err := uc.repo.Insert(ctx, entity); err != nil {
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, uc.abort(ctx, logger, reserved, compensationInsert, wrapRepositoryError(err))
	}

	if clearErr := uc.carts.Clear(context.WithoutCancel(ctx), caller.UserID); clearErr != nil {
		statusText = "CART_CLEAR_FAILED"
		logger.Warn("cart_clear_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", clearErr.Error()),
		)
	}

	publishErr = uc.obs.Publish(ctx, uc.publisher, domain.NewOrderPlacedEvent(entity))
	if publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}

	span.SetAttributes(
		attribute.String("order.status", string(entity.Status)),
		attribute.Int64("order.total_amount", entity.TotalAmount),
	)
	span.AddEvent("order.placed",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
		),
	)

	return entity, nil
}

// shippingAddress prefers the requested address and falls back to the
// owner's registered one. An empty result means no usable address.
func (uc *PlaceOrderUseCase) shippingAddress(ctx context.Context, ownerID, requested string) (string, error) {
	if addr := strings.TrimSpace(requested); addr != "" {
		return addr, nil
	}
	if uc.customers == nil {
		return "", nil
	}
	c, err := uc.customers.FindCustomer(ctx, ownerID)
	switch {
	case err == nil:
		return strings.TrimSpace(c.Address), nil
	case errors.Is(err, customer.ErrNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("%w: find customer: %w", ErrRepository, err)
	}
}

// abort releases the reservations taken so far and returns cause. When some
// of them cannot be handed back, the returned error also carries a
// *RestockError naming those lines.
func (uc *PlaceOrderUseCase) abort(ctx context.Context, logger observability.Logger, reserved []domain.LineItem, reason string, cause error) error {
	if relErr := uc.release(ctx, logger, reserved, reason); relErr != nil {
		return errors.Join(relErr, cause)
	}
	return cause
}

// release restocks every line reserved so far, newest first. It runs
// detached from the request's cancellation so an aborted request still hands
// stock back.
func (uc *PlaceOrderUseCase) release(ctx context.Context, logger observability.Logger, reserved []domain.LineItem, reason string) error {
	if len(reserved) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	var failed []domain.LineItem
	var lastErr error
	for i := len(reserved) - 1; i >= 0; i-- {
		l := reserved[i]
		err := restockLine(ctx, uc.ledger, l.ProductID, l.Quantity)
		switch {
		case err == nil:
		case errors.Is(err, inventory.ErrNotFound):
			logger.Warn("restock_skipped",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("reason", "product_not_found"),
			)
		default:
			failed = append(failed, l)
			lastErr = err
			logger.Error("compensation_restock_failed",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}

	uc.compensations.Add(1, observability.L("reason", reason))
	logger.Warn("reservations_released",
		observability.F("reason", reason),
		observability.F("lines", len(reserved)),
		observability.F("failed", len(failed)),
	)
	if len(failed) == 0 {
		return nil
	}
	uc.restockFailures.Add(float64(len(failed)), observability.L("use_case", useCasePlaceOrder))
	return &RestockError{Lines: failed, Err: lastErr}
}

func classifyReserveError(productID string, err error) error {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, inventory.ErrInvalidQuantity):
		return newValidation(err.Error())
	default:
		return fmt.Errorf("%w: reserve %s: %w", ErrRepository, productID, err)
	}
}

func reserveStatus(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, inventory.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "RESERVE_FAILED"
	}
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
