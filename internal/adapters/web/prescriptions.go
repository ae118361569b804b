package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
)

type prescriptionRequest struct {
	PatientName  string                  `json:"patient_name" validate:"required,max=200"`
	PatientPhone string                  `json:"patient_phone" validate:"max=50"`
	Prescriber   string                  `json:"prescriber" validate:"max=200"`
	Items        []core.PrescriptionItem `json:"items" validate:"required,min=1,max=50,dive"`
}

type auditRequest struct {
	From   string           `json:"from" validate:"required"`
	To     string           `json:"to" validate:"required"`
	Counts map[string]int64 `json:"counts"`
}

// apiSavePrescription handles POST /api/prescriptions
func (h *Handler) apiSavePrescription(w http.ResponseWriter, r *http.Request) {
	var req prescriptionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rx, err := h.svc.SavePrescription(r.Context(), app.SavePrescriptionRequest{
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		Prescriber:   req.Prescriber,
		Items:        req.Items,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rx)
}

// apiResolvePrescription handles GET /api/prescriptions/{id}/resolve
func (h *Handler) apiResolvePrescription(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ResolvePrescription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiAudit handles POST /api/audit with {"from", "to", "counts": {product_id: qty}}.
func (h *Handler) apiAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	from, err := parseTime("from", req.From)
	if err != nil {
		writeErrorBody(w, r, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR", Field: "from"}, http.StatusUnprocessableEntity)
		return
	}
	to, err := parseTime("to", req.To)
	if err != nil {
		writeErrorBody(w, r, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR", Field: "to"}, http.StatusUnprocessableEntity)
		return
	}
	sum, err := h.svc.GetAuditReport(r.Context(), core.AuditRequest{From: from, To: to, Counts: req.Counts})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sum)
}
