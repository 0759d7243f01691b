package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/application"
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
	useCaseUpdateStatus = "order.update_status"
	maxStatusAttempts   = 3
)

// UpdateStatusUseCase moves an order through its lifecycle on behalf of an
// administrator. The new status is written with a compare-and-set on the
// status it was planned from; cancellation restocks only after winning it.
type UpdateStatusUseCase struct {
	repo      domain.Repository
	ledger    inventory.Ledger
	publisher domoutbox.Publisher

	obs             application.Instruments
	restockFailures observability.Counter
}

func NewUpdateStatusUseCase(deps Dependencies) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{
		repo:      deps.Orders,
		ledger:    deps.Ledger,
		publisher: deps.Publisher,
		obs:       application.NewInstruments(deps.Telemetry, orderService),

		restockFailures: observability.Or(deps.Telemetry).Metrics().Counter(observability.MRestockFailures),
	}
}

type UpdateStatusInput struct {
	OrderID string
	Status  string
}

func (uc *UpdateStatusUseCase) Execute(ctx context.Context, cmd UpdateStatusInput) (_ *domain.Order, err error) {
	logger := logctx.FromOr(ctx, uc.obs.Log).With(
		observability.F("use_case", useCaseUpdateStatus),
		observability.F("order_id", cmd.OrderID),
	)

	ctx, span := uc.obs.Tracer.Start(ctx, application.SpanPrefix+"UpdateOrderStatus",
		attribute.String("use_case", useCaseUpdateStatus),
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target_status", cmd.Status),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var from domain.Status
	var publishErr error

	defer func() {
		lat := uc.obs.Observe(useCaseUpdateStatus, outcome, start)
		application.EndSpan(span, err, statusText)

		fields := application.DoneFields(ctx, outcome, statusText, lat, err)
		if from != "" {
			fields = append(fields, observability.F("from", string(from)))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if _, err := identity.Require(ctx, identity.CapUpdateStatus); err != nil {
		outcome, statusText = "error", "UNAUTHORIZED"
		return nil, err
	}
	target, err := domain.ParseStatus(cmd.Status)
	if err != nil {
		outcome, statusText = "error", "INVALID_STATUS"
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		entity, getErr := uc.repo.Get(ctx, cmd.OrderID)
		if getErr != nil {
			outcome, statusText = "error", "ORDER_LOAD_FAILED"
			return nil, wrapRepositoryError(getErr)
		}

		t, planErr := entity.Plan(target)
		if planErr != nil {
			outcome, statusText = "error", "INVALID_TRANSITION"
			return nil, planErr
		}
		from = t.From
		if !t.Changed {
			statusText = "NO_CHANGE"
			return entity, nil
		}

		now := time.Now().UTC()
		casErr := uc.repo.UpdateStatus(ctx, entity.ID, t.From, t.To, now)
		if errors.Is(casErr, domain.ErrConflict) {
			span.AddEvent("order.status_conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
			if attempt >= maxStatusAttempts {
				outcome, statusText = "error", "STATUS_CONFLICT"
				return nil, fmt.Errorf("order: update status after %d attempts: %w", attempt, ErrConflict)
			}
			continue
		}
		if casErr != nil {
			outcome, statusText = "error", "REPO_UPDATE_FAILED"
			return nil, wrapRepositoryError(casErr)
		}
		entity.Apply(t, now)

		var restockErr error
		if t.Restock {
			var restocked, skipped []domain.LineItem
			restocked, skipped, restockErr = uc.restock(ctx, logger, entity)
			publishErr = uc.obs.Publish(ctx, uc.publisher, domain.NewOrderCancelledEvent(entity, restocked, skipped))
			if len(skipped) > 0 {
				statusText = "RESTOCK_PARTIAL"
			}
		}
		if pubErr := uc.obs.Publish(ctx, uc.publisher, domain.NewOrderStatusChangedEvent(entity, t.From)); pubErr != nil {
			publishErr = errors.Join(publishErr, pubErr)
		}
		if publishErr != nil && statusText == "OK" {
			statusText = "EVENT_PUBLISH_FAILED"
		}

		span.SetAttributes(attribute.String("order.status", string(entity.Status)))
		if restockErr != nil {
			outcome, statusText = "error", "RESTOCK_FAILED"
			return nil, restockErr
		}
		return entity, nil
	}
}

// restock returns every line of a freshly cancelled order to the ledger.
// Lines whose product has disappeared are skipped and reported. Lines that
// still fail after retrying are listed in the returned *RestockError, and are
// also reported as skipped on the cancellation event.
func (uc *UpdateStatusUseCase) restock(ctx context.Context, logger observability.Logger, o *domain.Order) (restocked, skipped []domain.LineItem, err error) {
	ctx = context.WithoutCancel(ctx)
	var failed []domain.LineItem
	var lastErr error
	for _, l := range o.Items {
		rerr := restockLine(ctx, uc.ledger, l.ProductID, l.Quantity)
		switch {
		case rerr == nil:
			restocked = append(restocked, l)
		case errors.Is(rerr, inventory.ErrNotFound):
			skipped = append(skipped, l)
			logger.Warn("restock_skipped",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("reason", "product_not_found"),
			)
		default:
			skipped = append(skipped, l)
			failed = append(failed, l)
			lastErr = rerr
			logger.Error("restock_failed",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("error", rerr.Error()),
			)
		}
	}
	if len(failed) > 0 {
		uc.restockFailures.Add(float64(len(failed)), observability.L("use_case", useCaseUpdateStatus))
		err = &RestockError{OrderID: o.ID, Lines: failed, Err: lastErr}
	}
	return restocked, skipped, err
}
