package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-store/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"
)

const workerService = "inventory_worker"

// Worker runs the low-stock check for every placed order.
type Worker struct {
	subscriber domoutbox.Subscriber
	useCase    application.UseCase[domorder.OrderPlacedEvent, *LowStockResult]

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	useCase application.UseCase[domorder.OrderPlacedEvent, *LowStockResult],
	tel observability.Observability,
) *Worker {
	tel = observability.Or(tel)
	return &Worker{
		subscriber:   subscriber,
		useCase:      useCase,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.useCase == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handleOrderPlaced)
}

func (w *Worker) handleOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.order_placed"
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		w.count(useCase, "ignored")
		return nil
	}

	start := time.Now()
	outcome := "success"
	ctx, logger := logctx.Enrich(ctx, w.log,
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
		observability.F("order_id", evt.OrderID),
	)
	defer func() {
		w.observe(useCase, outcome, time.Since(start).Seconds())
	}()

	res, err := w.useCase.Execute(ctx, evt)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("worker: low stock check: %w", err)
	}
	if res != nil && len(res.Low) > 0 {
		logger.Debug("low_stock_detected", observability.F("products", len(res.Low)))
	}
	return nil
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}

func (w *Worker) observe(useCase string, outcome string, latencySeconds float64) {
	w.count(useCase, outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}
