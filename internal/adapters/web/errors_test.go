package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pharmacy-pos/internal/core"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
	}{
		{"conflict", fmt.Errorf("commit: %w", &core.ConcurrentStockConflictError{ProductID: "p1", Available: 3}), http.StatusConflict, "STOCK_CONFLICT", ""},
		{"short", &core.InsufficientStockError{ProductID: "p1", Requested: 5, Available: 3}, http.StatusConflict, "INSUFFICIENT_STOCK", ""},
		{"missing customer", &core.ValidationError{Field: "customer", Message: "x", Cause: core.ErrMissingCustomerForCredit}, http.StatusBadRequest, "MISSING_CUSTOMER", "customer"},
		{"validation", &core.ValidationError{Field: "discount", Message: "must not be negative"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "discount"},
		{"empty", core.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART", ""},
		{"not found", fmt.Errorf("sale s1: %w", core.ErrNotFound), http.StatusNotFound, "NOT_FOUND", ""},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, logs := observer.New(zap.ErrorLevel)
			h := &Handler{log: zap.New(obs)}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/cart/checkout", nil)

			h.writeServiceError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.field, body.Field)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body.Error, "connection reset")
				assert.Equal(t, 1, logs.Len())
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestStockErrorsCarryAvailability(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	rec := httptest.NewRecorder()
	h.writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/", nil),
		&core.ConcurrentStockConflictError{ProductID: "p9", Available: 0})

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "p9", body.ProductID)
	require.NotNil(t, body.Available)
	assert.Equal(t, int64(0), *body.Available)
}
