package application

import (
	"context"
	"errors"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const (
	SpanPrefix     = "UC."
	PublishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Instruments carries the signals every use case reports: RED metrics for
// itself and for the events it publishes. Build once at wiring time.
type Instruments struct {
	Tracer observability.Tracer
	Log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return Instruments{
		Tracer:       tel.Tracer(),
		Log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Observe records one use case execution and returns its latency in seconds.
func (in Instruments) Observe(useCase, outcome string, start time.Time) float64 {
	lat := time.Since(start).Seconds()
	in.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	in.durHistogram.Observe(lat,
		observability.L("use_case", useCase),
	)
	return lat
}

// Publish hands e to publisher with a short deadline and records the attempt
// as an external call. A nil publisher is a no-op.
func (in Instruments) Publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil || e == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	start := time.Now()
	err := publisher.Publish(pubCtx, e)
	cancel()
	outcome := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}

	in.extCounter.Add(1,
		observability.L("peer", PublishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", PublishPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error, statusText string) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, statusText)
	} else {
		span.SetStatus(codes.Ok, statusText)
	}
	span.End()
}

// DoneFields builds the common fields of a use_case_done log line.
func DoneFields(ctx context.Context, outcome, statusText string, latency float64, err error) []observability.Field {
	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", latency),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	return fields
}
