package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType describes how a product is packaged and sold.
type ProductType string

const (
	ProductTypeTablets      ProductType = "tablets"
	ProductTypeTabletPair   ProductType = "tablet-pair"
	ProductTypeSyrup        ProductType = "syrup"
	ProductTypeLiquidBySize ProductType = "liquid-by-size"
	ProductTypeWeightBased  ProductType = "weight-based"
	ProductTypeIndividual   ProductType = "individual"
	ProductTypeService      ProductType = "service"
	ProductTypeBoxOnly      ProductType = "box-only"
	ProductTypeCustom       ProductType = "custom"
)

// IsValid reports whether t is one of the known product types.
func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypeTablets, ProductTypeTabletPair, ProductTypeSyrup, ProductTypeLiquidBySize,
		ProductTypeWeightBased, ProductTypeIndividual, ProductTypeService, ProductTypeBoxOnly,
		ProductTypeCustom:
		return true
	}
	return false
}

// TracksStock is false for services, which are sold without a stock count.
func (t ProductType) TracksStock() bool {
	return t != ProductTypeService
}

// UnitType tags a sale unit. The vocabulary is closed.
type UnitType string

const (
	UnitTablet  UnitType = "tablet"
	UnitPair    UnitType = "pair"
	UnitStrip   UnitType = "strip"
	UnitBox     UnitType = "box"
	UnitBottle  UnitType = "bottle"
	UnitPack    UnitType = "pack"
	UnitGram    UnitType = "gram"
	UnitPiece   UnitType = "piece"
	UnitService UnitType = "service"
	UnitUnit    UnitType = "unit"
	UnitCustom  UnitType = "custom"
)

// IsValid reports whether t belongs to the unit vocabulary.
func (t UnitType) IsValid() bool {
	switch t {
	case UnitTablet, UnitPair, UnitStrip, UnitBox, UnitBottle, UnitPack, UnitGram,
		UnitPiece, UnitService, UnitUnit, UnitCustom:
		return true
	}
	return false
}

// Unit is a sellable grouping of a product.
// Quantity is the number of base units one of this unit represents.
type Unit struct {
	Type     UnitType        `json:"type"`
	Label    string          `json:"label"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Product is a catalog item with its live base-unit stock count.
// StockQuantity is maintained by the stock ledger only.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Type          ProductType     `json:"product_type"`
	Units         []Unit          `json:"units"`
	StockQuantity int64           `json:"stock_quantity"`
	ReorderLevel  int64           `json:"reorder_level"`
	CostPrice     decimal.Decimal `json:"cost_price"` // per base unit
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the Units slice.
func (p Product) Clone() Product {
	out := p
	out.Units = append([]Unit(nil), p.Units...)
	return out
}

// SmallestUnit returns the unit with the lowest conversion factor.
func (p Product) SmallestUnit() (Unit, bool) {
	if len(p.Units) == 0 {
		return Unit{}, false
	}
	best := p.Units[0]
	for _, u := range p.Units[1:] {
		if u.Quantity < best.Quantity {
			best = u
		}
	}
	return best, true
}

// IsLowStock reports whether stock is at or below the reorder level.
func (p Product) IsLowStock() bool {
	return p.Type.TracksStock() && p.StockQuantity <= p.ReorderLevel
}

// ProductFilter narrows ListProducts. Zero values mean "no filter".
type ProductFilter struct {
	Query        string // case-insensitive name substring
	Category     string
	ActiveOnly   bool
	LowStockOnly bool
}
