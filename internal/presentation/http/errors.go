package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	appOrder "github.com/Zhima-Mochi/minishop-store/internal/application/order"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-store/internal/domain/identity"
	domainInventory "github.com/Zhima-Mochi/minishop-store/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-store/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-store/internal/observability"
	"github.com/Zhima-Mochi/minishop-store/internal/observability/logctx"
)

const (
	codeNotFound               = "NOT_FOUND"
	codeInsufficientStock      = "INSUFFICIENT_STOCK"
	codeEmptyCart              = "EMPTY_CART"
	codeMissingShippingAddress = "MISSING_SHIPPING_ADDRESS"
	codeInvalidStatus          = "INVALID_STATUS"
	codeInvalidTransition      = "INVALID_TRANSITION"
	codeValidation             = "VALIDATION"
	codeUnauthenticated        = "UNAUTHENTICATED"
	codeForbidden              = "AUTHORIZATION_DENIED"
	codeConflict               = "CONFLICT"
	codeInternal               = "INTERNAL"

	maxBodyBytes = 1 << 20
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// writeDomainError maps core failures onto status codes. Unclassified errors
// are logged and answered with a generic 500 body.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *domainInventory.InsufficientStockError
	var missing *domainInventory.NotFoundError

	switch {
	case errors.Is(err, appOrder.ErrRepository):
		h.writeInternalError(w, r, err)
	case errors.As(err, &stockErr):
		available, requested := stockErr.Available, stockErr.Requested
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     err.Error(),
			Code:      codeInsufficientStock,
			ProductID: stockErr.ProductID,
			Available: &available,
			Requested: &requested,
		})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: codeNotFound, ProductID: missing.ProductID})
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err)
	case errors.Is(err, domainOrder.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, codeEmptyCart, err)
	case errors.Is(err, domainOrder.ErrMissingShippingAddress):
		writeError(w, http.StatusBadRequest, codeMissingShippingAddress, err)
	case errors.Is(err, domainOrder.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, codeInvalidStatus, err)
	case errors.Is(err, domainOrder.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, codeInvalidTransition, err)
	case errors.Is(err, appOrder.ErrValidation),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrMissingProduct),
		errors.Is(err, domainInventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeValidation, err)
	case errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, err)
	case errors.Is(err, identity.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err)
	case errors.Is(err, domainOrder.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, err)
	default:
		h.writeInternalError(w, r, err)
	}
}

// writeInternalError logs err and answers with a body that hides it.
func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logctx.FromOr(r.Context(), h.log).Error("request_failed",
		observability.F("route", routeFromContext(r.Context())),
		observability.F("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, codeInternal, errors.New("internal server error"))
}
