package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pharmacy-pos/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Available *int64 `json:"available,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorBody(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and reported as a 500 without leaking the underlying message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve       *core.ValidationError
		short    *core.InsufficientStockError
		conflict *core.ConcurrentStockConflictError
	)
	switch {
	case errors.As(err, &conflict):
		avail := conflict.Available
		writeErrorBody(w, r, errorResponse{
			Error: err.Error(), Code: "STOCK_CONFLICT", ProductID: conflict.ProductID, Available: &avail,
		}, http.StatusConflict)
	case errors.As(err, &short):
		avail := short.Available
		writeErrorBody(w, r, errorResponse{
			Error: err.Error(), Code: "INSUFFICIENT_STOCK", ProductID: short.ProductID, Available: &avail,
		}, http.StatusConflict)
	case errors.Is(err, core.ErrMissingCustomerForCredit):
		writeErrorBody(w, r, errorResponse{Error: err.Error(), Code: "MISSING_CUSTOMER", Field: "customer"}, http.StatusBadRequest)
	case errors.As(err, &ve):
		writeErrorBody(w, r, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR", Field: ve.Field}, http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrEmptyCart):
		writeError(w, r, err.Error(), "EMPTY_CART", http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	default:
		h.log.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
