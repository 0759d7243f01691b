package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/application"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService = "inventory-service"
	useCaseLowStock  = "inventory.check_low_stock"
)

// LowStockResult lists the products found at or below the threshold.
type LowStockResult struct {
	Low []dominv.LowStockEvent
}

// CheckLowStockUseCase re-reads the products of a placed order and reports
// every one whose remaining stock is at or below the threshold.
type CheckLowStockUseCase struct {
	catalog   catalog.Reader
	publisher domoutbox.Publisher
	threshold int

	obs        application.Instruments
	lowCounter observability.Counter // inventory_low_stock_total{product_id}
}

func NewCheckLowStockUseCase(reader catalog.Reader, publisher domoutbox.Publisher, threshold int, tel observability.Observability) *CheckLowStockUseCase {
	return &CheckLowStockUseCase{
		catalog:    reader,
		publisher:  publisher,
		threshold:  threshold,
		obs:        application.NewInstruments(tel, inventoryService),
		lowCounter: observability.Or(tel).Metrics().Counter(observability.MLowStock),
	}
}

func (uc *CheckLowStockUseCase) Execute(ctx context.Context, e domorder.OrderPlacedEvent) (_ *LowStockResult, err error) {
	logger := logctx.FromOr(ctx, uc.obs.Log).With(
		observability.F("use_case", useCaseLowStock),
		observability.F("order_id", e.OrderID),
	)

	ctx, span := uc.obs.Tracer.Start(ctx, application.SpanPrefix+"CheckLowStock",
		attribute.String("use_case", useCaseLowStock),
		attribute.String("order.id", e.OrderID),
		attribute.Int("threshold", uc.threshold),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &LowStockResult{}
	var publishErr error

	defer func() {
		lat := uc.obs.Observe(useCaseLowStock, outcome, start)
		application.EndSpan(span, err, statusText)

		fields := application.DoneFields(ctx, outcome, statusText, lat, err)
		fields = append(fields, observability.F("low_stock_products", len(result.Low)))
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	var missing int
	for _, line := range e.Lines {
		p, findErr := uc.catalog.FindProduct(ctx, line.ProductID)
		if errors.Is(findErr, catalog.ErrNotFound) {
			missing++
			continue
		}
		if findErr != nil {
			outcome, statusText = "error", "PRODUCT_LOOKUP_FAILED"
			return result, fmt.Errorf("inventory: find product %s: %w", line.ProductID, findErr)
		}
		if p.Stock > uc.threshold {
			continue
		}

		evt := dominv.NewLowStockEvent(p.ID, p.Name, p.Stock, uc.threshold)
		result.Low = append(result.Low, evt)
		uc.lowCounter.Add(1, observability.L("product_id", p.ID))
		logger.Warn("inventory_low_stock",
			observability.F("product_id", p.ID),
			observability.F("available", p.Stock),
			observability.F("threshold", uc.threshold),
		)
		span.AddEvent("inventory.low_stock",
			trace.WithAttributes(
				attribute.String("product.id", p.ID),
				attribute.Int("available", p.Stock),
			),
		)

		if pubErr := uc.obs.Publish(ctx, uc.publisher, evt); pubErr != nil {
			publishErr = errors.Join(publishErr, pubErr)
			statusText = "EVENT_PUBLISH_FAILED"
		}
	}
	if missing > 0 && statusText == "OK" {
		statusText = "PRODUCT_MISSING"
	}

	return result, nil
}
