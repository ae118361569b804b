package app

import "pharmacy-pos/internal/core"

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// MovementResult is returned by RecordStockMovement. Movement is nil when nothing was recorded.
type MovementResult struct {
	Movement *core.StockMovement `json:"movement"`
	Product  *core.Product       `json:"product"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	Movements []core.StockMovement `json:"movements"`
}

// SaleListResult is returned by ListSales.
type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}

// CreditListResult is returned by ListCredits.
type CreditListResult struct {
	Credits []core.CreditSale `json:"credits"`
}

// PrescriptionCartResult is returned by LoadPrescriptionIntoCart.
type PrescriptionCartResult struct {
	Cart       *core.CartView   `json:"cart"`
	Resolution *core.Resolution `json:"resolution"`
}

// VerifyResult is returned by VerifyStock.
type VerifyResult struct {
	Checked    int                   `json:"checked"`
	Mismatches []core.Reconciliation `json:"mismatches"`
}

// OK reports whether every product reconciled.
func (r *VerifyResult) OK() bool { return len(r.Mismatches) == 0 }
