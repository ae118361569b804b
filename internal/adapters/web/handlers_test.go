package web_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/adapters/web"
	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/store/memory"
)

const (
	testSecret = "test-secret"
	testIssuer = "pharmacy-pos-test"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := app.NewAppService(memory.New(), time.Hour, nil)
	h := web.NewHandler(svc, web.Options{JWTSecret: testSecret, JWTIssuer: testIssuer, MaxBodyBytes: 4096})
	token, err := web.IssueToken(testSecret, testIssuer, "till-1", "Ama", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, handler: h, token: token}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.doAs(s.token, method, path, body)
}

func (s *testServer) doAs(token, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type apiError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field"`
	ProductID string `json:"product_id"`
	Available *int64 `json:"available"`
	RequestID string `json:"request_id"`
}

func (s *testServer) createTablets(name string, stock int64) core.Product {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/products", map[string]any{
		"name":         name,
		"category":     "analgesic",
		"product_type": "tablets",
		"units": []map[string]any{
			{"type": "tablet", "label": "Tablet", "quantity": 1, "price": "2.00"},
			{"type": "strip", "label": "Strip of 10", "quantity": 10, "price": "18.00"},
		},
		"cost_price":    "1.50",
		"reorder_level": 5,
		"opening_stock": stock,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Product](s.t, rec)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.doAs("", http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.doAs("", http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[apiError](t, rec).Code)

	forged, err := web.IssueToken("other-secret", testIssuer, "till-9", "Mallory", time.Hour)
	require.NoError(t, err)
	rec = s.doAs(forged, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := web.IssueToken(testSecret, testIssuer, "till-1", "Ama", -time.Minute)
	require.NoError(t, err)
	rec = s.doAs(expired, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[web.Cashier](t, rec)
	assert.Equal(t, "till-1", me.CashierID)
	assert.Equal(t, "Ama", me.Name)
}

func TestCashCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)
	p := s.createTablets("Paracetamol 500mg", 30)

	rec := s.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": p.ID, "unit_type": "strip", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": p.ID, "unit_type": "tablet", "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cart := decode[core.CartView](t, rec)
	require.Len(t, cart.Lines, 2)
	assert.True(t, decimal.NewFromInt(42).Equal(cart.Subtotal), cart.Subtotal.String())

	rec = s.do(http.MethodPost, "/api/cart/checkout", map[string]any{"payment_method": "cash", "discount": "2.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[core.Sale](t, rec)
	assert.True(t, decimal.NewFromInt(40).Equal(sale.Total), sale.Total.String())
	assert.Equal(t, "till-1", sale.CashierID)
	assert.Equal(t, "Ama", sale.CashierName)

	rec = s.do(http.MethodGet, "/api/products/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), decode[core.Product](t, rec).StockQuantity)

	rec = s.do(http.MethodGet, "/api/sales/"+sale.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[core.CartView](t, rec).Lines, "checkout leaves a fresh cart")

	rec = s.do(http.MethodGet, "/api/stock/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[app.VerifyResult](t, rec).Mismatches)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	p := s.createTablets("Ibuprofen 200mg", 12)

	t.Run("empty cart", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/cart/checkout", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "EMPTY_CART", decode[apiError](t, rec).Code)
	})

	t.Run("insufficient stock keeps the cart", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": p.ID, "unit_type": "strip", "quantity": 2})
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decode[apiError](t, rec)
		assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
		assert.Equal(t, p.ID, body.ProductID)
		require.NotNil(t, body.Available)
		assert.Equal(t, int64(12), *body.Available)

		rec = s.do(http.MethodGet, "/api/cart", nil)
		assert.Empty(t, decode[core.CartView](t, rec).Lines, "partial add is rolled back")
	})

	t.Run("credit without customer", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": p.ID, "unit_type": "tablet"})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(http.MethodPost, "/api/cart/checkout", map[string]any{"payment_method": "credit"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MISSING_CUSTOMER", decode[apiError](t, rec).Code)
	})

	t.Run("credit with customer", func(t *testing.T) {
		rec := s.do(http.MethodPut, "/api/cart/customer", map[string]any{
			"customer_name": "Kofi", "customer_phone": "0244000000", "payment_method": "credit",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = s.do(http.MethodPost, "/api/cart/checkout", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		sale := decode[core.Sale](t, rec)
		assert.True(t, sale.IsCredit)

		rec = s.do(http.MethodGet, "/api/credits?status=pending", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		credits := decode[app.CreditListResult](t, rec)
		require.Len(t, credits.Credits, 1)

		rec = s.do(http.MethodPost, "/api/credits/"+credits.Credits[0].ID+"/settle", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, core.CreditSettled, decode[core.CreditSale](t, rec).Status)
	})

	t.Run("request validation", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/cart/items", map[string]any{"unit_type": "tablet"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode[apiError](t, rec)
		assert.Equal(t, "VALIDATION_ERROR", body.Code)
		assert.Equal(t, "product_id", body.Field)
	})

	t.Run("line delta is bounded", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/api/cart/items/0", map[string]any{"delta": int64(1844674407370955162)})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "delta", decode[apiError](t, rec).Field)
	})

	t.Run("domain validation", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/products/"+p.ID+"/movements", map[string]any{
			"kind": "loss", "delta": 3, "reason": "dropped",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[apiError](t, rec).Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/prescriptions", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+s.token)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/prescriptions", map[string]any{
			"patient_name": string(bytes.Repeat([]byte("x"), 8192)),
			"items":        []map[string]any{{"medicine": "Ibuprofen"}},
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/products/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = s.do(http.MethodGet, "/api/nowhere", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPrescriptionIntoCart(t *testing.T) {
	s := newTestServer(t)
	p := s.createTablets("Amoxicillin 250mg", 25)

	rec := s.do(http.MethodPost, "/api/prescriptions", map[string]any{
		"patient_name":  "Esi",
		"patient_phone": "0201",
		"items": []map[string]any{
			{"medicine": "Amoxicillin", "dosage": "1 tablet", "frequency": "3 times daily", "duration": "10 days"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rx := decode[core.Prescription](t, rec)

	rec = s.do(http.MethodGet, "/api/prescriptions/"+rx.ID+"/resolve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[core.Resolution](t, rec)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, core.WarningPartialFulfillment, res.Warnings[0].Kind)

	rec = s.do(http.MethodPost, "/api/cart/prescription/"+rx.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[app.PrescriptionCartResult](t, rec)
	assert.Equal(t, "Esi", loaded.Cart.CustomerName)
	var base int64
	for _, l := range loaded.Cart.Lines {
		assert.Equal(t, p.ID, l.ProductID)
		base += l.BaseQuantity()
	}
	assert.Equal(t, int64(25), base)
}

func TestAuditEndpoint(t *testing.T) {
	s := newTestServer(t)
	p := s.createTablets("Cetirizine 10mg", 40)

	rec := s.do(http.MethodPost, "/api/audit", map[string]any{
		"from":   time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339),
		"to":     time.Now().Add(time.Minute).UTC().Format(time.RFC3339),
		"counts": map[string]int64{p.ID: 38},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[core.AuditSummary](t, rec)
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, int64(2), sum.Lines[0].Shrinkage)

	rec = s.do(http.MethodPost, "/api/audit", map[string]any{"from": "yesterday", "to": "2026-01-01"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "from", decode[apiError](t, rec).Field)
}
