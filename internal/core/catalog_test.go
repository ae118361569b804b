package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/core"
)

func TestAutoCalculatePrices(t *testing.T) {
	units := []core.Unit{
		{Type: core.UnitStrip, Label: "Strip", Quantity: 10, Price: price("100")},
		{Type: core.UnitBox, Label: "Box", Quantity: 100, Price: price("900")},
		{Type: core.UnitTablet, Label: "Tablet", Quantity: 1, Price: price("0")},
	}

	out, err := core.AutoCalculatePrices(units, core.UnitBox)
	require.NoError(t, err)
	assert.Equal(t, "90.00", out[0].Price.StringFixed(2))
	assert.Equal(t, "900.00", out[1].Price.StringFixed(2), "reference price is untouched")
	assert.Equal(t, "9.00", out[2].Price.StringFixed(2))
	assert.Equal(t, "100", units[0].Price.String(), "input slice is not modified")

	again, err := core.AutoCalculatePrices(out, core.UnitBox)
	require.NoError(t, err)
	assert.Equal(t, out, again, "reapplying with the same reference is idempotent")

	t.Run("rounds to two decimals", func(t *testing.T) {
		out, err := core.AutoCalculatePrices([]core.Unit{
			{Type: core.UnitBox, Quantity: 3, Price: price("10")},
			{Type: core.UnitTablet, Quantity: 1},
		}, core.UnitBox)
		require.NoError(t, err)
		assert.Equal(t, "3.33", out[1].Price.String())
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := core.AutoCalculatePrices(units, core.UnitBottle)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestUnitHelpers(t *testing.T) {
	p := &core.Product{ID: "p1", Units: []core.Unit{
		{Type: core.UnitTablet, Quantity: 1, Price: price("2")},
		{Type: core.UnitStrip, Quantity: 10, Price: price("18")},
	}}

	u, err := core.ResolveUnit(p, core.UnitStrip)
	require.NoError(t, err)
	assert.Equal(t, int64(30), core.ToBaseQuantity(u, 3))
	assert.True(t, core.BasePrice(u).Equal(price("18")))

	_, err = core.ResolveUnit(p, core.UnitBox)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestValidateProduct(t *testing.T) {
	valid := func() core.Product {
		return core.Product{
			Name: "Cough Syrup", Type: core.ProductTypeSyrup,
			Units: []core.Unit{{Type: core.UnitBottle, Label: "100ml", Quantity: 1, Price: price("4")}},
		}
	}
	tests := []struct {
		name   string
		mutate func(p *core.Product)
		field  string
	}{
		{"valid", func(p *core.Product) {}, ""},
		{"no name", func(p *core.Product) { p.Name = " " }, "name"},
		{"unknown type", func(p *core.Product) { p.Type = "potion" }, "product_type"},
		{"no units", func(p *core.Product) { p.Units = nil }, "units"},
		{"zero quantity", func(p *core.Product) { p.Units[0].Quantity = 0 }, "units"},
		{"negative price", func(p *core.Product) { p.Units[0].Price = price("-1") }, "units"},
		{"duplicate unit", func(p *core.Product) { p.Units = append(p.Units, p.Units[0]) }, "units"},
		{"unknown unit", func(p *core.Product) { p.Units[0].Type = "crate" }, "units"},
		{"negative reorder", func(p *core.Product) { p.ReorderLevel = -1 }, "reorder_level"},
		{"negative cost", func(p *core.Product) { p.CostPrice = price("-0.01") }, "cost_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			err := core.ValidateProduct(&p)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestCatalogService(t *testing.T) {
	f := newFixture(t)

	t.Run("opening stock is booked as a restock movement", func(t *testing.T) {
		p := f.addTablets(t, "Paracetamol 500mg", 250)
		assert.Equal(t, int64(250), p.StockQuantity)

		moves, err := f.ledger.History(f.ctx, core.MovementFilter{ProductID: p.ID})
		require.NoError(t, err)
		require.Len(t, moves, 1)
		assert.Equal(t, core.MovementRestock, moves[0].Kind)
		assert.Equal(t, "setup", moves[0].Actor)
	})

	t.Run("updates never touch stock", func(t *testing.T) {
		p := f.addTablets(t, "Ibuprofen 400mg", 40)
		p.Name = "Ibuprofen 400mg Film Coated"
		p.StockQuantity = 0

		updated, err := f.catalog.SaveProduct(f.ctx, *p, 999, "admin")
		require.NoError(t, err)
		assert.Equal(t, "Ibuprofen 400mg Film Coated", updated.Name)
		assert.Equal(t, int64(40), updated.StockQuantity)
		f.requireConsistent(t, p.ID)
	})

	t.Run("recalculate prices persists derived prices", func(t *testing.T) {
		p := f.addTablets(t, "Cetirizine 10mg", 0)
		updated, err := f.catalog.RecalculatePrices(f.ctx, p.ID, core.UnitBox)
		require.NoError(t, err)

		strip, err := core.ResolveUnit(updated, core.UnitStrip)
		require.NoError(t, err)
		assert.Equal(t, "15.00", strip.Price.StringFixed(2))
	})

	t.Run("services take no opening stock", func(t *testing.T) {
		svc := f.addService(t, "Blood pressure check")
		assert.Equal(t, int64(0), svc.StockQuantity)
	})

	t.Run("low stock filter", func(t *testing.T) {
		low, err := f.catalog.ListProducts(f.ctx, core.ProductFilter{LowStockOnly: true})
		require.NoError(t, err)
		for _, p := range low {
			assert.LessOrEqual(t, p.StockQuantity, p.ReorderLevel)
			assert.NotEqual(t, core.ProductTypeService, p.Type)
		}
	})
}
