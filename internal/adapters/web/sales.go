package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pharmacy-pos/internal/core"
)

// apiListSales handles GET /api/sales?from=&to=&cashier_id=&payment_method=&limit=
func (h *Handler) apiListSales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := periodParams(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	res, err := h.svc.ListSales(r.Context(), core.SaleFilter{
		From:          from,
		To:            to,
		CashierID:     q.Get("cashier_id"),
		PaymentMethod: core.PaymentMethod(q.Get("payment_method")),
		Limit:         limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiGetSale handles GET /api/sales/{id}
func (h *Handler) apiGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

// apiSalesSummary handles GET /api/sales/summary?from=&to=
// Without a period it summarises the current UTC day.
func (h *Handler) apiSalesSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := periodParams(w, r)
	if !ok {
		return
	}
	if from.IsZero() && to.IsZero() {
		from = time.Now().UTC().Truncate(24 * time.Hour)
		to = from.Add(24 * time.Hour)
	}
	sum, err := h.svc.SalesSummary(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sum)
}

// apiListCredits handles GET /api/credits?status=
func (h *Handler) apiListCredits(w http.ResponseWriter, r *http.Request) {
	status := core.CreditStatus(r.URL.Query().Get("status"))
	if status != "" && status != core.CreditPending && status != core.CreditSettled {
		writeError(w, r, "status must be pending or settled", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.ListCredits(r.Context(), core.CreditFilter{Status: status})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiSettleCredit handles POST /api/credits/{id}/settle
func (h *Handler) apiSettleCredit(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.SettleCredit(r.Context(), chi.URLParam(r, "id"), cashier(r).CashierID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}

// periodParams reads ?from= and ?to=, writing a 400 on malformed values.
func periodParams(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return from, to, false
	}
	to, err = queryTime(r, "to")
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return from, to, false
	}
	return from, to, true
}
