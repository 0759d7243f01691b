package httppresentation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appOrder "github.com/Zhima-Mochi/minishop-store/internal/application/order"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/identity"
	domainOrder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"
)

// OrderService is the order workflow as seen by the transport.
type OrderService interface {
	PlaceOrder(ctx context.Context, in appOrder.PlaceOrderInput) (*domainOrder.Order, error)
	UpdateStatus(ctx context.Context, in appOrder.UpdateStatusInput) (*domainOrder.Order, error)
	ListOrders(ctx context.Context, in appOrder.ListOrdersInput) ([]*domainOrder.Order, error)
	ListAllOrders(ctx context.Context, in appOrder.ListAllOrdersInput) ([]appOrder.OwnedOrder, error)
	GetOrder(ctx context.Context, in appOrder.GetOrderInput) (*domainOrder.Order, error)
}

type Handler struct {
	orders   OrderService
	products catalog.Reader
	carts    cart.Store
	log      observability.Logger

	httpRequests observability.Counter   // http_requests_total{method,route,status}
	httpDuration observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	tracerName           = "minishop.http"
)

func NewHandler(orders OrderService, products catalog.Reader, carts cart.Store, tel observability.Observability) *Handler {
	tel = observability.Or(tel)
	return &Handler{
		orders:       orders,
		products:     products,
		carts:        carts,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		httpRequests: tel.Metrics().Counter(observability.MHTTPRequests),
		httpDuration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

// Router builds the chi router. metrics, when non-nil, is served at /metrics.
func (h *Handler) Router(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Each route: Trace → request logger → identity → metrics → access log → handler
	h.route(r, http.MethodGet, "/health", h.handleHealth)
	h.route(r, http.MethodGet, "/products/{id}", h.handleGetProduct)
	h.route(r, http.MethodGet, "/cart", h.handleGetCart)
	h.route(r, http.MethodPost, "/cart/items", h.handleAddCartItem)
	h.route(r, http.MethodPost, "/orders", h.handlePlaceOrder)
	h.route(r, http.MethodGet, "/orders", h.handleListOrders)
	h.route(r, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.route(r, http.MethodGet, "/admin/orders", h.handleListAllOrders)
	h.route(r, http.MethodPatch, "/admin/orders/{id}/status", h.handleUpdateStatus)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func (h *Handler) route(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
		)(
			IdentityMiddleware(
				h.withHTTPMetrics(
					h.withAccessLog(handler),
				),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.FindProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.CapManageOwnCart)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	c, err := h.carts.Read(r.Context(), caller.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.CapManageOwnCart)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req lineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err)
		return
	}
	if _, err := h.products.FindProduct(r.Context(), req.ProductID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	c, err := h.carts.Add(r.Context(), caller.UserID, cart.Line{ProductID: req.ProductID, Quantity: req.Quantity})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err)
		return
	}

	in := appOrder.PlaceOrderInput{
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	}
	if req.Items != nil {
		in.Items = make([]cart.Line, 0, len(req.Items))
		for _, it := range req.Items {
			in.Items = append(in.Items, cart.Line{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err)
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), appOrder.ListOrdersInput{Limit: limit})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), appOrder.GetOrderInput{OrderID: chi.URLParam(r, "id")})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err)
		return
	}
	entries, err := h.orders.ListAllOrders(r.Context(), appOrder.ListAllOrdersInput{Limit: limit})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]adminOrderResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, adminOrderResponse{
			orderResponse: toOrderResponse(e.Order),
			OwnerName:     e.OwnerName,
			OwnerEmail:    e.OwnerEmail,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), appOrder.UpdateStatusInput{
		OrderID: chi.URLParam(r, "id"),
		Status:  req.Status,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected instruments.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.httpRequests.Add(1, labels...)
		h.httpDuration.Observe(time.Since(start).Seconds(), labels...)
	})
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
