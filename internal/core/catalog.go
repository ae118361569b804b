package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ResolveUnit finds the unit of the given type on p.
func ResolveUnit(p *Product, unitType UnitType) (Unit, error) {
	for _, u := range p.Units {
		if u.Type == unitType {
			return u, nil
		}
	}
	return Unit{}, fmt.Errorf("unit %s on product %s: %w", unitType, p.ID, ErrNotFound)
}

// BasePrice is the price of one of u.
func BasePrice(u Unit) decimal.Decimal {
	return u.Price
}

// ToBaseQuantity converts count units of u to base units.
func ToBaseQuantity(u Unit, count int64) int64 {
	return u.Quantity * count
}

// AutoCalculatePrices derives every unit's price from the reference unit:
// referencePrice / referenceQuantity * unitQuantity, rounded to 2 decimals.
// The reference unit is returned unchanged. The input slice is not modified.
func AutoCalculatePrices(units []Unit, referenceType UnitType) ([]Unit, error) {
	var ref *Unit
	for i := range units {
		if units[i].Type == referenceType {
			ref = &units[i]
			break
		}
	}
	if ref == nil {
		return nil, fmt.Errorf("reference unit %s: %w", referenceType, ErrNotFound)
	}
	if ref.Quantity < 1 {
		return nil, invalid("units", "reference unit %s has quantity %d", referenceType, ref.Quantity)
	}

	out := make([]Unit, len(units))
	copy(out, units)
	for i := range out {
		if out[i].Type == referenceType {
			continue
		}
		out[i].Price = ref.Price.
			Mul(decimal.NewFromInt(out[i].Quantity)).
			Div(decimal.NewFromInt(ref.Quantity)).
			Round(2)
	}
	return out, nil
}

// ValidateProduct checks the catalog invariants of p.
func ValidateProduct(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	if !p.Type.IsValid() {
		return invalid("product_type", "unknown product type %q", p.Type)
	}
	if len(p.Units) == 0 {
		return invalid("units", "at least one unit is required")
	}
	seen := make(map[UnitType]bool, len(p.Units))
	for _, u := range p.Units {
		if !u.Type.IsValid() {
			return invalid("units", "unknown unit type %q", u.Type)
		}
		if seen[u.Type] {
			return invalid("units", "duplicate unit type %q", u.Type)
		}
		seen[u.Type] = true
		if u.Quantity < 1 {
			return invalid("units", "unit %s quantity must be at least 1", u.Type)
		}
		if u.Price.IsNegative() {
			return invalid("units", "unit %s price must not be negative", u.Type)
		}
	}
	if p.ReorderLevel < 0 {
		return invalid("reorder_level", "must not be negative")
	}
	if p.CostPrice.IsNegative() {
		return invalid("cost_price", "must not be negative")
	}
	return nil
}

// CatalogService manages product master data. It never writes stock directly:
// opening stock for a new product is booked through the StockLedger.
type CatalogService interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// SaveProduct creates or updates p. openingStock only applies to new products.
	SaveProduct(ctx context.Context, p Product, openingStock int64, actor string) (*Product, error)
	// RecalculatePrices persists AutoCalculatePrices against referenceType.
	RecalculatePrices(ctx context.Context, productID string, referenceType UnitType) (*Product, error)
}

type catalogService struct {
	repo   Repository
	ledger StockLedger
	log    *zap.Logger
}

func NewCatalogService(repo Repository, ledger StockLedger, log *zap.Logger) CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &catalogService{repo: repo, ledger: ledger, log: log}
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *catalogService) SaveProduct(ctx context.Context, p Product, openingStock int64, actor string) (*Product, error) {
	if err := ValidateProduct(&p); err != nil {
		return nil, err
	}
	if openingStock < 0 {
		return nil, invalid("opening_stock", "must not be negative")
	}

	isNew := p.ID == ""
	if !isNew {
		if _, err := s.repo.GetProduct(ctx, p.ID); err != nil {
			if !isNotFound(err) {
				return nil, err
			}
			isNew = true
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if isNew {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := s.repo.SaveProduct(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	s.log.Info("product saved", zap.String("product_id", p.ID), zap.String("name", p.Name), zap.Bool("created", isNew))

	if isNew && openingStock > 0 && p.Type.TracksStock() {
		_, err := s.ledger.ApplyMovement(ctx, MovementRequest{
			ProductID: p.ID,
			Delta:     openingStock,
			Kind:      MovementRestock,
			Reason:    "opening stock",
			Actor:     actor,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to book opening stock: %w", err)
		}
	}
	return s.repo.GetProduct(ctx, p.ID)
}

func (s *catalogService) RecalculatePrices(ctx context.Context, productID string, referenceType UnitType) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	units, err := AutoCalculatePrices(p.Units, referenceType)
	if err != nil {
		return nil, err
	}
	p.Units = units
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save recalculated prices: %w", err)
	}
	s.log.Info("prices recalculated", zap.String("product_id", p.ID), zap.String("reference", string(referenceType)))
	return s.repo.GetProduct(ctx, productID)
}
