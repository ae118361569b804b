// restore-seed loads the demo pharmacy catalog with opening stock. Products that
// already exist by name are left untouched, so it is safe to run repeatedly.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/config"
	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/logger"
	"pharmacy-pos/internal/store"
)

type seedProduct struct {
	req       app.SaveProductRequest
	reference core.UnitType // derive the other unit prices from this one
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tablets(name, category, boxPrice, cost string, reorder, stock int64) seedProduct {
	return seedProduct{
		req: app.SaveProductRequest{
			Name: name, Category: category, Type: core.ProductTypeTablets,
			Units: []core.Unit{
				{Type: core.UnitTablet, Label: "Tablet", Quantity: 1},
				{Type: core.UnitStrip, Label: "Strip of 10", Quantity: 10},
				{Type: core.UnitBox, Label: "Box of 100", Quantity: 100, Price: money(boxPrice)},
			},
			CostPrice: money(cost), ReorderLevel: reorder, IsActive: true, OpeningStock: stock,
		},
		reference: core.UnitBox,
	}
}

var catalog = []seedProduct{
	tablets("Paracetamol 500mg", "analgesic", "150.00", "1.20", 200, 1000),
	tablets("Ibuprofen 400mg", "analgesic", "220.00", "1.60", 100, 500),
	tablets("Amoxicillin 250mg", "antibiotic", "380.00", "2.90", 100, 300),
	tablets("Metformin 500mg", "antidiabetic", "120.00", "0.85", 150, 600),
	tablets("Loratadine 10mg", "antihistamine", "180.00", "1.30", 50, 200),
	{req: app.SaveProductRequest{
		Name: "Cough Syrup 100ml", Category: "respiratory", Type: core.ProductTypeSyrup,
		Units:     []core.Unit{{Type: core.UnitBottle, Label: "Bottle 100ml", Quantity: 1, Price: money("25.00")}},
		CostPrice: money("16.00"), ReorderLevel: 10, IsActive: true, OpeningStock: 40,
	}},
	{req: app.SaveProductRequest{
		Name: "Surgical Gloves", Category: "consumables", Type: core.ProductTypeIndividual,
		Units: []core.Unit{
			{Type: core.UnitPair, Label: "Pair", Quantity: 2, Price: money("3.00")},
			{Type: core.UnitBox, Label: "Box of 50 pairs", Quantity: 100, Price: money("120.00")},
		},
		CostPrice: money("0.90"), ReorderLevel: 100, IsActive: true, OpeningStock: 1000,
	}},
	{req: app.SaveProductRequest{
		Name: "Blood Pressure Check", Category: "services", Type: core.ProductTypeService,
		Units:    []core.Unit{{Type: core.UnitService, Label: "Check", Quantity: 1, Price: money("10.00")}},
		IsActive: true,
	}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx := context.Background()
	repo, closeStore, err := store.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("store", zap.Error(err))
	}
	defer closeStore()
	svc := app.NewAppService(repo, 0, zl)

	existing, err := svc.ListProducts(ctx, app.ProductQuery{})
	if err != nil {
		zl.Fatal("list products", zap.Error(err))
	}
	have := make(map[string]bool, len(existing.Products))
	for _, p := range existing.Products {
		have[strings.ToLower(p.Name)] = true
	}

	created := 0
	for _, sp := range catalog {
		if have[strings.ToLower(sp.req.Name)] {
			zl.Info("exists, skipping", zap.String("product", sp.req.Name))
			continue
		}
		sp.req.Actor = "restore-seed"
		if sp.reference != "" {
			units, err := core.AutoCalculatePrices(sp.req.Units, sp.reference)
			if err != nil {
				zl.Fatal("derive prices", zap.String("product", sp.req.Name), zap.Error(err))
			}
			sp.req.Units = units
		}
		p, err := svc.SaveProduct(ctx, sp.req)
		if err != nil {
			zl.Fatal("save product", zap.String("product", sp.req.Name), zap.Error(err))
		}
		created++
		zl.Info("seeded", zap.String("product", p.Name), zap.String("id", p.ID), zap.Int64("stock", p.StockQuantity))
	}
	zl.Info("seed complete", zap.Int("created", created), zap.Int("skipped", len(catalog)-created))
}
