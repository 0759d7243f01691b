package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-store/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string, // keep this low-cardinality: event name, queue, etc.
) context.Context {
	if base == nil {
		base = logctx.FromOr(ctx, nil)
	}

	fields := make([]observability.Field, 0, 4+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// EventMiddleware opens a consumer span around every handler run and hands the
// handler a logger tagged with the event name and a fresh event id.
func EventMiddleware(base observability.Logger, tel observability.Observability) domoutbox.Middleware {
	tel = observability.Or(tel)
	if base == nil {
		base = tel.Logger()
	}
	return func(eventName string, next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			ctx, span := tel.Tracer().Start(ctx, "EVT."+eventName,
				attribute.String("event", eventName),
			)
			defer span.End()

			sc := trace.SpanContextFromContext(ctx)
			ctx = WithEventContext(ctx, logctx.FromOr(ctx, base), sc.TraceID(), sc.SpanID(),
				map[string]string{"event": eventName},
			)
			err := next(ctx, e)
			if err != nil {
				span.RecordError(err)
			}
			return err
		}
	}
}
