package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Prescription is an intake record. It does not affect stock until resolved into cart lines.
type Prescription struct {
	ID           string             `json:"id"`
	PatientName  string             `json:"patient_name"`
	PatientPhone string             `json:"patient_phone"`
	Prescriber   string             `json:"prescriber,omitempty"`
	Items        []PrescriptionItem `json:"items"`
	CreatedAt    time.Time          `json:"created_at"`
}

type PrescriptionItem struct {
	Medicine     string `json:"medicine" validate:"required"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

// WarningKind classifies a resolution problem. Warnings never block other items.
type WarningKind string

const (
	WarningNotFound           WarningKind = "not_found"
	WarningOutOfStock         WarningKind = "out_of_stock"
	WarningPartialFulfillment WarningKind = "partial_fulfillment"
	WarningUncertainDosage    WarningKind = "uncertain_dosage"
)

type PrescriptionWarning struct {
	Kind      WarningKind `json:"kind"`
	Medicine  string      `json:"medicine"`
	ProductID string      `json:"product_id,omitempty"`
	Required  int64       `json:"required"`
	Fulfilled int64       `json:"fulfilled"`
	Message   string      `json:"message"`
}

// ResolvedItem ties one prescription item to what it resolved to.
type ResolvedItem struct {
	Item      PrescriptionItem `json:"item"`
	Plan      DosagePlan       `json:"plan"`
	ProductID string           `json:"product_id,omitempty"`
	Fulfilled int64            `json:"fulfilled"` // base units
}

// Resolution is the cart content a prescription maps to.
type Resolution struct {
	PrescriptionID string                `json:"prescription_id"`
	PatientName    string                `json:"patient_name"`
	PatientPhone   string                `json:"patient_phone"`
	Lines          []CartLine            `json:"lines"`
	Items          []ResolvedItem        `json:"items"`
	Warnings       []PrescriptionWarning `json:"warnings"`
}

// PrescriptionResolver turns prescription text into cart lines against the live catalog.
type PrescriptionResolver struct {
	repo Repository
	log  *zap.Logger
}

func NewPrescriptionResolver(repo Repository, log *zap.Logger) *PrescriptionResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &PrescriptionResolver{repo: repo, log: log}
}

// ResolveByID loads a stored prescription and resolves it.
func (r *PrescriptionResolver) ResolveByID(ctx context.Context, id string) (*Resolution, error) {
	rx, err := r.repo.GetPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, rx)
}

// Resolve matches each item to the first active product whose name contains, or is
// contained in, the medicine name (case-insensitive). The smallest unit of the product
// is used and the count is clamped to the stock on hand, with a warning when short.
func (r *PrescriptionResolver) Resolve(ctx context.Context, rx *Prescription) (*Resolution, error) {
	catalog, err := r.repo.ListProducts(ctx, ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	res := &Resolution{
		PrescriptionID: rx.ID,
		PatientName:    rx.PatientName,
		PatientPhone:   rx.PatientPhone,
	}
	allocated := make(map[string]int64) // base units already placed per product
	lineIdx := make(map[string]int)     // product+unit -> index in res.Lines

	for _, item := range rx.Items {
		plan := ParseDosage(item.Dosage, item.Frequency, item.Duration)
		resolved := ResolvedItem{Item: item, Plan: plan}
		warn := PrescriptionWarning{Medicine: item.Medicine, Required: plan.RequiredQuantity}

		if !plan.Certain() {
			w := warn
			w.Kind = WarningUncertainDosage
			w.Message = fmt.Sprintf("could not read every dosage field for %s; assumed 1 where missing", item.Medicine)
			if plan.Capped {
				w.Message = fmt.Sprintf("dosage for %s is beyond the allowed bounds; required quantity capped at %d", item.Medicine, plan.RequiredQuantity)
			}
			res.Warnings = append(res.Warnings, w)
		}

		match := matchProduct(catalog, item.Medicine)
		if match == nil {
			warn.Kind = WarningNotFound
			warn.Message = fmt.Sprintf("no product matches %q", item.Medicine)
			res.Warnings = append(res.Warnings, warn)
			res.Items = append(res.Items, resolved)
			continue
		}
		warn.ProductID = match.ID
		resolved.ProductID = match.ID

		// Stock is re-read per item so concurrent sales are seen.
		p, err := r.repo.GetProduct(ctx, match.ID)
		if err != nil {
			return nil, err
		}
		unit, ok := p.SmallestUnit()
		if !ok {
			warn.Kind = WarningNotFound
			warn.Message = fmt.Sprintf("product %s has no sale units", p.Name)
			res.Warnings = append(res.Warnings, warn)
			res.Items = append(res.Items, resolved)
			continue
		}

		count := ceilDiv(plan.RequiredQuantity, unit.Quantity)
		key := p.ID + "/" + string(unit.Type)
		limit := MaxLineQuantity
		if i, ok := lineIdx[key]; ok {
			limit -= res.Lines[i].Quantity
		}
		if p.Type.TracksStock() {
			available := p.StockQuantity - allocated[p.ID]
			if available <= 0 || available/unit.Quantity == 0 {
				warn.Kind = WarningOutOfStock
				warn.Message = fmt.Sprintf("%s is out of stock", p.Name)
				res.Warnings = append(res.Warnings, warn)
				res.Items = append(res.Items, resolved)
				continue
			}
			limit = min(limit, available/unit.Quantity)
		}
		if count > limit {
			count = max(limit, 0)
			warn.Kind = WarningPartialFulfillment
			warn.Fulfilled = ToBaseQuantity(unit, count)
			warn.Message = fmt.Sprintf("%s: required %d, only %d available", p.Name, plan.RequiredQuantity, warn.Fulfilled)
			res.Warnings = append(res.Warnings, warn)
		}
		if count <= 0 {
			res.Items = append(res.Items, resolved)
			continue
		}

		base := ToBaseQuantity(unit, count)
		allocated[p.ID] += base
		resolved.Fulfilled = base
		res.Items = append(res.Items, resolved)

		if i, ok := lineIdx[key]; ok {
			res.Lines[i].Quantity += count
			res.Lines[i].recompute()
			continue
		}
		lineIdx[key] = len(res.Lines)
		res.Lines = append(res.Lines, newCartLine(p, unit, count))
	}

	r.log.Debug("prescription resolved",
		zap.String("prescription_id", rx.ID),
		zap.Int("lines", len(res.Lines)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

func matchProduct(catalog []Product, medicine string) *Product {
	needle := strings.ToLower(strings.TrimSpace(medicine))
	if needle == "" {
		return nil
	}
	for i := range catalog {
		name := strings.ToLower(catalog[i].Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return &catalog[i]
		}
	}
	return nil
}

func newCartLine(p *Product, u Unit, count int64) CartLine {
	l := CartLine{
		ProductID:    p.ID,
		ProductName:  p.Name,
		UnitType:     u.Type,
		UnitLabel:    u.Label,
		UnitQuantity: u.Quantity,
		Quantity:     count,
		UnitPrice:    BasePrice(u),
		CostBasis:    p.CostPrice.Mul(decimal.NewFromInt(u.Quantity)),
		Untracked:    !p.Type.TracksStock(),
	}
	l.recompute()
	return l
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
