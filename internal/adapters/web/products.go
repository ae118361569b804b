package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

type unitRequest struct {
	Type     core.UnitType   `json:"type" validate:"required"`
	Label    string          `json:"label"`
	Quantity int64           `json:"quantity" validate:"gte=1"`
	Price    decimal.Decimal `json:"price"`
}

type productRequest struct {
	Name         string           `json:"name" validate:"required,max=200"`
	Category     string           `json:"category" validate:"max=100"`
	ProductType  core.ProductType `json:"product_type" validate:"required"`
	Units        []unitRequest    `json:"units" validate:"required,min=1,dive"`
	ReorderLevel int64            `json:"reorder_level" validate:"gte=0"`
	CostPrice    decimal.Decimal  `json:"cost_price"`
	IsActive     *bool            `json:"is_active"`
	OpeningStock int64            `json:"opening_stock" validate:"gte=0"`
}

type movementRequest struct {
	Kind      core.MovementKind `json:"kind" validate:"required,oneof=restock loss return correction"`
	Delta     int64             `json:"delta"`
	SetTo     *int64            `json:"set_to" validate:"omitempty,gte=0"`
	Reason    string            `json:"reason" validate:"required,max=500"`
	Reference string            `json:"reference" validate:"max=100"`
}

// apiListProducts handles GET /api/products?q=&category=&active=&low_stock=
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.ListProducts(r.Context(), app.ProductQuery{
		Query:        strings.TrimSpace(q.Get("q")),
		Category:     strings.TrimSpace(q.Get("category")),
		ActiveOnly:   queryBool(r, "active"),
		LowStockOnly: queryBool(r, "low_stock"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiGetProduct handles GET /api/products/{id}
func (h *Handler) apiGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiSaveProduct handles POST /api/products and PUT /api/products/{id}
func (h *Handler) apiSaveProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	units := make([]core.Unit, len(req.Units))
	for i, u := range req.Units {
		units[i] = core.Unit{Type: u.Type, Label: u.Label, Quantity: u.Quantity, Price: u.Price}
	}

	p, err := h.svc.SaveProduct(r.Context(), app.SaveProductRequest{
		ID:           id,
		Name:         req.Name,
		Category:     req.Category,
		Type:         req.ProductType,
		Units:        units,
		ReorderLevel: req.ReorderLevel,
		CostPrice:    req.CostPrice,
		IsActive:     active,
		OpeningStock: req.OpeningStock,
		Actor:        cashier(r).CashierID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSONStatus(w, status, p)
}

// apiRecalculatePrices handles POST /api/products/{id}/prices/recalculate
func (h *Handler) apiRecalculatePrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferenceUnit core.UnitType `json:"reference_unit" validate:"required"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.RecalculatePrices(r.Context(), chi.URLParam(r, "id"), req.ReferenceUnit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiRecordMovement handles POST /api/products/{id}/movements
func (h *Handler) apiRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RecordStockMovement(r.Context(), app.RecordMovementRequest{
		ProductID: chi.URLParam(r, "id"),
		Kind:      req.Kind,
		Delta:     req.Delta,
		SetTo:     req.SetTo,
		Reason:    req.Reason,
		Reference: req.Reference,
		Actor:     cashier(r).CashierID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// apiListMovements handles GET /api/products/{id}/movements?kind=&from=&to=&limit=
func (h *Handler) apiListMovements(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.svc.GetProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.ListMovements(r.Context(), core.MovementFilter{
		ProductID: id,
		Kind:      core.MovementKind(r.URL.Query().Get("kind")),
		From:      from,
		To:        to,
		Limit:     limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiVerifyStock handles GET /api/stock/verify
func (h *Handler) apiVerifyStock(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.VerifyStock(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
