package app

import (
	"context"
	"time"

	"pharmacy-pos/internal/core"
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// GetProduct returns one product by ID.
	GetProduct(ctx context.Context, id string) (*core.Product, error)

	// ListProducts returns products ordered by name.
	ListProducts(ctx context.Context, q ProductQuery) (*ProductListResult, error)

	// SaveProduct creates or updates catalog data. OpeningStock only applies to new products.
	SaveProduct(ctx context.Context, req SaveProductRequest) (*core.Product, error)

	// RecalculatePrices derives every unit price of a product from its reference unit.
	RecalculatePrices(ctx context.Context, productID string, reference core.UnitType) (*core.Product, error)

	// RecordStockMovement books a restock, loss, return or correction through the ledger.
	// Returns a nil movement when an absolute correction matches current stock.
	RecordStockMovement(ctx context.Context, req RecordMovementRequest) (*MovementResult, error)

	// ListMovements returns stock history, oldest first.
	ListMovements(ctx context.Context, filter core.MovementFilter) (*MovementListResult, error)

	// Cart returns the cashier's cart, creating an empty one if needed.
	Cart(ctx context.Context, cashierID string) *core.CartView
	AddToCart(ctx context.Context, cashierID, productID string, unit core.UnitType) (*core.CartView, error)
	// UpdateCartLine changes a line quantity by delta; a result of zero removes the line.
	UpdateCartLine(ctx context.Context, cashierID string, index int, delta int64) (*core.CartView, error)
	RemoveCartLine(ctx context.Context, cashierID string, index int) (*core.CartView, error)
	ClearCart(ctx context.Context, cashierID string) *core.CartView
	// SetCartCustomer sets customer details and, when given, the payment method.
	SetCartCustomer(ctx context.Context, req CartCustomerRequest) (*core.CartView, error)

	// Checkout turns the cashier's cart into a committed sale.
	Checkout(ctx context.Context, req CheckoutRequest) (*core.Sale, error)

	GetSale(ctx context.Context, id string) (*core.Sale, error)
	ListSales(ctx context.Context, filter core.SaleFilter) (*SaleListResult, error)
	// SalesSummary aggregates sales created in [from, to).
	SalesSummary(ctx context.Context, from, to time.Time) (*core.SalesSummary, error)

	// SettleCredit marks a pending credit sale as paid.
	SettleCredit(ctx context.Context, creditID, actor string) (*core.CreditSale, error)
	ListCredits(ctx context.Context, filter core.CreditFilter) (*CreditListResult, error)

	// SavePrescription stores an intake record. It does not touch stock.
	SavePrescription(ctx context.Context, req SavePrescriptionRequest) (*core.Prescription, error)
	// ResolvePrescription maps a stored prescription onto cart lines without changing any cart.
	ResolvePrescription(ctx context.Context, id string) (*core.Resolution, error)
	// LoadPrescriptionIntoCart replaces the cashier's cart with a resolved prescription.
	LoadPrescriptionIntoCart(ctx context.Context, cashierID, prescriptionID string) (*PrescriptionCartResult, error)

	// GetAuditReport values stock and recommends reorders over a period.
	GetAuditReport(ctx context.Context, req core.AuditRequest) (*core.AuditSummary, error)

	// VerifyStock reconciles cached stock against movement history for every product.
	VerifyStock(ctx context.Context) (*VerifyResult, error)

	// SweepSessions evicts carts idle past the configured TTL.
	SweepSessions(now time.Time) int
}
