package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/application"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/identity"
	domain "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseListOrders    = "order.list"
	useCaseListAllOrders = "order.list_all"
	useCaseGetOrder      = "order.get"
)

type ListOrdersInput struct {
	Limit int
}

// ListOrdersUseCase returns the caller's own orders, newest first.
type ListOrdersUseCase struct {
	repo domain.Repository
	obs  application.Instruments
}

func NewListOrdersUseCase(deps Dependencies) *ListOrdersUseCase {
	return &ListOrdersUseCase{repo: deps.Orders, obs: application.NewInstruments(deps.Telemetry, orderService)}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, cmd ListOrdersInput) (_ []*domain.Order, err error) {
	ctx, span := uc.obs.Tracer.Start(ctx, application.SpanPrefix+"ListOrders",
		attribute.String("use_case", useCaseListOrders),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		lat := uc.obs.Observe(useCaseListOrders, outcome, start)
		application.EndSpan(span, err, statusText)
		logctx.FromOr(ctx, uc.obs.Log).Debug("use_case_done",
			append(application.DoneFields(ctx, outcome, statusText, lat, err),
				observability.F("use_case", useCaseListOrders))...,
		)
	}()

	caller, err := identity.Require(ctx, identity.CapReadOwnOrders)
	if err != nil {
		outcome, statusText = "error", "UNAUTHORIZED"
		return nil, err
	}
	orders, err := uc.repo.List(ctx, domain.ListFilter{OwnerID: caller.UserID, Limit: cmd.Limit})
	if err != nil {
		outcome, statusText = "error", "REPO_LIST_FAILED"
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}

type ListAllOrdersInput struct {
	Limit int
}

// OwnedOrder is an order together with the identity fields of its owner.
type OwnedOrder struct {
	Order      *domain.Order
	OwnerName  string
	OwnerEmail string
}

// ListAllOrdersUseCase is the administrator view over every order.
type ListAllOrdersUseCase struct {
	repo      domain.Repository
	customers customer.Directory
	obs       application.Instruments
}

func NewListAllOrdersUseCase(deps Dependencies) *ListAllOrdersUseCase {
	return &ListAllOrdersUseCase{
		repo:      deps.Orders,
		customers: deps.Customers,
		obs:       application.NewInstruments(deps.Telemetry, orderService),
	}
}

func (uc *ListAllOrdersUseCase) Execute(ctx context.Context, cmd ListAllOrdersInput) (_ []OwnedOrder, err error) {
	logger := logctx.FromOr(ctx, uc.obs.Log).With(observability.F("use_case", useCaseListAllOrders))
	ctx, span := uc.obs.Tracer.Start(ctx, application.SpanPrefix+"ListAllOrders",
		attribute.String("use_case", useCaseListAllOrders),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		lat := uc.obs.Observe(useCaseListAllOrders, outcome, start)
		application.EndSpan(span, err, statusText)
		logger.Info("use_case_done", application.DoneFields(ctx, outcome, statusText, lat, err)...)
	}()

	if _, err := identity.Require(ctx, identity.CapReadAllOrders); err != nil {
		outcome, statusText = "error", "UNAUTHORIZED"
		return nil, err
	}
	orders, err := uc.repo.List(ctx, domain.ListFilter{Limit: cmd.Limit})
	if err != nil {
		outcome, statusText = "error", "REPO_LIST_FAILED"
		return nil, wrapRepositoryError(err)
	}

	owners := make(map[string]*customer.Customer)
	out := make([]OwnedOrder, 0, len(orders))
	for _, o := range orders {
		entry := OwnedOrder{Order: o}
		c, seen := owners[o.OwnerID]
		if !seen {
			c, err = uc.lookupOwner(ctx, o.OwnerID)
			if err != nil {
				outcome, statusText = "error", "CUSTOMER_LOOKUP_FAILED"
				return nil, err
			}
			owners[o.OwnerID] = c
		}
		if c != nil {
			entry.OwnerName, entry.OwnerEmail = c.Name, c.Email
		}
		out = append(out, entry)
	}
	return out, nil
}

// lookupOwner returns nil for owners missing from the directory.
func (uc *ListAllOrdersUseCase) lookupOwner(ctx context.Context, ownerID string) (*customer.Customer, error) {
	if uc.customers == nil {
		return nil, nil
	}
	c, err := uc.customers.FindCustomer(ctx, ownerID)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, customer.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: find customer: %w", ErrRepository, err)
	}
}

type GetOrderInput struct {
	OrderID string
}

// GetOrderUseCase loads one order for its owner or an administrator.
// Other callers see ErrNotFound.
type GetOrderUseCase struct {
	repo domain.Repository
	obs  application.Instruments
}

func NewGetOrderUseCase(deps Dependencies) *GetOrderUseCase {
	return &GetOrderUseCase{repo: deps.Orders, obs: application.NewInstruments(deps.Telemetry, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, cmd GetOrderInput) (_ *domain.Order, err error) {
	ctx, span := uc.obs.Tracer.Start(ctx, application.SpanPrefix+"GetOrder",
		attribute.String("use_case", useCaseGetOrder),
		attribute.String("order.id", cmd.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		lat := uc.obs.Observe(useCaseGetOrder, outcome, start)
		application.EndSpan(span, err, statusText)
		logctx.FromOr(ctx, uc.obs.Log).Debug("use_case_done",
			append(application.DoneFields(ctx, outcome, statusText, lat, err),
				observability.F("use_case", useCaseGetOrder),
				observability.F("order_id", cmd.OrderID))...,
		)
	}()

	caller, err := identity.Require(ctx, identity.CapReadOwnOrders)
	if err != nil {
		outcome, statusText = "error", "UNAUTHORIZED"
		return nil, err
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, newValidation("order id is required")
	}

	entity, err := uc.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		outcome, statusText = "error", "ORDER_LOAD_FAILED"
		return nil, wrapRepositoryError(err)
	}
	if entity.OwnerID != caller.UserID && !caller.Can(identity.CapReadAllOrders) {
		outcome, statusText = "error", "NOT_OWNER"
		return nil, ErrNotFound
	}
	return entity, nil
}
