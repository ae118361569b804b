package core

import (
	"context"
	"time"
)

// Repository is the persistence boundary shared by every service in this package.
// Implementations live in internal/store/memory and internal/store/postgres.
//
// ApplyMovements and CommitSale are the only paths that change a product's stock.
// Both lock the affected products in ascending ID order, reject the whole call with
// *InsufficientStockError if any product would go negative, and otherwise persist
// every movement (and the sale) atomically.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// ListProducts returns products ordered by name, then ID.
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// SaveProduct inserts or updates catalog fields. StockQuantity is ignored: new
	// products start at zero and existing products keep their stock.
	SaveProduct(ctx context.Context, p *Product) error

	ApplyMovements(ctx context.Context, reqs []MovementRequest) ([]StockMovement, error)
	// ListMovements returns movements oldest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)

	// CommitSale persists sale, its optional credit record and the stock movements
	// in one unit. Reference on every movement is expected to carry sale.ID.
	CommitSale(ctx context.Context, sale *Sale, credit *CreditSale, reqs []MovementRequest) ([]StockMovement, error)
	GetSale(ctx context.Context, id string) (*Sale, error)
	// ListSales returns sales newest first.
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error)

	GetCreditSale(ctx context.Context, id string) (*CreditSale, error)
	ListCreditSales(ctx context.Context, filter CreditFilter) ([]CreditSale, error)
	// SettleCreditSale marks a pending credit settled. Settling twice is a *ValidationError.
	SettleCreditSale(ctx context.Context, id, actor string, at time.Time) (*CreditSale, error)

	SavePrescription(ctx context.Context, rx *Prescription) error
	GetPrescription(ctx context.Context, id string) (*Prescription, error)
}
