package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

type addItemRequest struct {
	ProductID string        `json:"product_id" validate:"required"`
	UnitType  core.UnitType `json:"unit_type" validate:"required"`
	Quantity  int64         `json:"quantity" validate:"omitempty,gte=1,lte=10000"`
}

type updateLineRequest struct {
	Delta int64 `json:"delta" validate:"required,gte=-10000,lte=10000"`
}

type customerRequest struct {
	CustomerName  string             `json:"customer_name" validate:"max=200"`
	CustomerPhone string             `json:"customer_phone" validate:"max=50"`
	PaymentMethod core.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card mobile insurance credit"`
}

type checkoutRequest struct {
	PaymentMethod core.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card mobile insurance credit"`
	Discount      decimal.Decimal    `json:"discount"`
	Tax           decimal.Decimal    `json:"tax"`
}

// apiGetCart handles GET /api/cart
func (h *Handler) apiGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Cart(r.Context(), cashier(r).CashierID))
}

// apiClearCart handles DELETE /api/cart
func (h *Handler) apiClearCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ClearCart(r.Context(), cashier(r).CashierID))
}

// apiAddToCart handles POST /api/cart/items. A quantity above one adds the first unit
// and then grows that line, so the whole request is checked against stock.
func (h *Handler) apiAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	cashierID := cashier(r).CashierID

	view, err := h.svc.AddToCart(r.Context(), cashierID, req.ProductID, req.UnitType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.Quantity > 1 {
		idx := lineIndex(view, req.ProductID, req.UnitType)
		view, err = h.svc.UpdateCartLine(r.Context(), cashierID, idx, req.Quantity-1)
		if err != nil {
			// roll back the unit added above
			_, _ = h.svc.UpdateCartLine(r.Context(), cashierID, idx, -1)
			h.writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, view)
}

func lineIndex(v *core.CartView, productID string, unit core.UnitType) int {
	for i, l := range v.Lines {
		if l.ProductID == productID && l.UnitType == unit {
			return i
		}
	}
	return -1
}

func lineParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, "line index must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return idx, true
}

// apiUpdateCartLine handles PATCH /api/cart/items/{index}
func (h *Handler) apiUpdateCartLine(w http.ResponseWriter, r *http.Request) {
	idx, ok := lineParam(w, r)
	if !ok {
		return
	}
	var req updateLineRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	view, err := h.svc.UpdateCartLine(r.Context(), cashier(r).CashierID, idx, req.Delta)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// apiRemoveCartLine handles DELETE /api/cart/items/{index}
func (h *Handler) apiRemoveCartLine(w http.ResponseWriter, r *http.Request) {
	idx, ok := lineParam(w, r)
	if !ok {
		return
	}
	view, err := h.svc.RemoveCartLine(r.Context(), cashier(r).CashierID, idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// apiSetCartCustomer handles PUT /api/cart/customer
func (h *Handler) apiSetCartCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	view, err := h.svc.SetCartCustomer(r.Context(), app.CartCustomerRequest{
		CashierID:     cashier(r).CashierID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, view)
}

// apiLoadPrescription handles POST /api/cart/prescription/{id}
func (h *Handler) apiLoadPrescription(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.LoadPrescriptionIntoCart(r.Context(), cashier(r).CashierID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiCheckout handles POST /api/cart/checkout. An empty body checks out with the
// payment method already set on the cart.
func (h *Handler) apiCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	c := cashier(r)
	sale, err := h.svc.Checkout(r.Context(), app.CheckoutRequest{
		CashierID:     c.CashierID,
		CashierName:   c.Name,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		Tax:           req.Tax,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sale)
}
