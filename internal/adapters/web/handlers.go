package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"pharmacy-pos/internal/app"
)

// Options configures NewHandler.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	JWTIssuer      string
	MaxBodyBytes   int64
	Logger         *zap.Logger
}

// Handler holds the ApplicationService, the chi router, and request validation.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	validate  *validator.Validate
	jwtSecret string
	issuer    string
	log       *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	h := &Handler{
		svc:       svc,
		validate:  newValidator(),
		jwtSecret: opts.JWTSecret,
		issuer:    opts.JWTIssuer,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(maxBody))

		r.Get("/api/auth/me", h.me)

		// ── Catalog and stock ─────────────────────────────────────────────────
		r.Get("/api/products", h.apiListProducts)
		r.Post("/api/products", h.apiSaveProduct)
		r.Get("/api/products/{id}", h.apiGetProduct)
		r.Put("/api/products/{id}", h.apiSaveProduct)
		r.Post("/api/products/{id}/prices/recalculate", h.apiRecalculatePrices)
		r.Get("/api/products/{id}/movements", h.apiListMovements)
		r.Post("/api/products/{id}/movements", h.apiRecordMovement)

		// ── Cart (the session is the authenticated cashier's) ─────────────────
		r.Get("/api/cart", h.apiGetCart)
		r.Delete("/api/cart", h.apiClearCart)
		r.Post("/api/cart/items", h.apiAddToCart)
		r.Patch("/api/cart/items/{index}", h.apiUpdateCartLine)
		r.Delete("/api/cart/items/{index}", h.apiRemoveCartLine)
		r.Put("/api/cart/customer", h.apiSetCartCustomer)
		r.Post("/api/cart/prescription/{id}", h.apiLoadPrescription)
		r.Post("/api/cart/checkout", h.apiCheckout)

		// ── Sales and credit ──────────────────────────────────────────────────
		r.Get("/api/sales", h.apiListSales)
		r.Get("/api/sales/summary", h.apiSalesSummary)
		r.Get("/api/sales/{id}", h.apiGetSale)
		r.Get("/api/credits", h.apiListCredits)
		r.Post("/api/credits/{id}/settle", h.apiSettleCredit)

		// ── Prescriptions ─────────────────────────────────────────────────────
		r.Post("/api/prescriptions", h.apiSavePrescription)
		r.Get("/api/prescriptions/{id}/resolve", h.apiResolvePrescription)

		// ── Audit ─────────────────────────────────────────────────────────────
		r.Post("/api/audit", h.apiAudit)
		r.Get("/api/stock/verify", h.apiVerifyStock)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, "no such route", "NOT_FOUND", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, "method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	}
	writeJSON(w, response{Status: "ok", Time: time.Now().UTC()})
}

// cashier returns the authenticated cashier; RequireAuth guarantees one is present.
func cashier(r *http.Request) *Cashier {
	if c := cashierFromContext(r.Context()); c != nil {
		return c
	}
	return &Cashier{}
}

// decodeJSON decodes the request body into v and validates it. Returns false and
// writes an error response on failure: 413 when the body exceeds the limit set by
// RequestBodyLimit, 400 for malformed JSON, 422 when validation fails.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeErrorBody(w, r, errorResponse{
				Error: fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()),
				Code:  "VALIDATION_ERROR",
				Field: fe.Field(),
			}, http.StatusUnprocessableEntity)
			return false
		}
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// queryTime parses an RFC 3339 timestamp or YYYY-MM-DD date from the query string.
// An absent parameter yields the zero time.
func queryTime(r *http.Request, key string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	return parseTime(key, v)
}

func parseTime(field, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected RFC 3339 or YYYY-MM-DD, got %q", field, v)
	}
	return t, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
