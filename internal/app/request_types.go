package app

import (
	"github.com/shopspring/decimal"

	"pharmacy-pos/internal/core"
)

// ProductQuery narrows ListProducts.
type ProductQuery struct {
	Query        string
	Category     string
	ActiveOnly   bool
	LowStockOnly bool
}

// SaveProductRequest is the input for creating or updating a product.
// An empty ID creates a new product.
type SaveProductRequest struct {
	ID           string
	Name         string
	Category     string
	Type         core.ProductType
	Units        []core.Unit
	ReorderLevel int64
	CostPrice    decimal.Decimal
	IsActive     bool
	OpeningStock int64
	Actor        string
}

// RecordMovementRequest is the input for a manual stock movement.
// SetTo, when non-nil, makes a correction to an absolute quantity and Delta is ignored.
type RecordMovementRequest struct {
	ProductID string
	Kind      core.MovementKind
	Delta     int64
	SetTo     *int64
	Reason    string
	Reference string
	Actor     string
}

// CartCustomerRequest sets who the cart is for and how it will be paid.
type CartCustomerRequest struct {
	CashierID     string
	CustomerName  string
	CustomerPhone string
	PaymentMethod core.PaymentMethod // empty leaves the current method
}

// CheckoutRequest is the input for Checkout.
type CheckoutRequest struct {
	CashierID     string
	CashierName   string
	PaymentMethod core.PaymentMethod
	Discount      decimal.Decimal
	Tax           decimal.Decimal
}

// SavePrescriptionRequest is the input for prescription intake.
type SavePrescriptionRequest struct {
	PatientName  string
	PatientPhone string
	Prescriber   string
	Items        []core.PrescriptionItem
}
