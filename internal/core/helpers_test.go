package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/store/memory"
)

type fixture struct {
	ctx      context.Context
	repo     *memory.Store
	ledger   core.StockLedger
	catalog  core.CatalogService
	resolver *core.PrescriptionResolver
	sessions *core.SessionManager
	checkout *core.CheckoutEngine
	audit    *core.AuditEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, memory.New())
}

// newFixtureWithRepo wires the services over repo. The checkout engine uses
// checkoutRepo when given, so tests can interpose on the commit.
func newFixtureWithRepo(t *testing.T, repo *memory.Store, checkoutRepo ...core.Repository) *fixture {
	t.Helper()
	ledger := core.NewStockLedger(repo, nil)
	resolver := core.NewPrescriptionResolver(repo, nil)
	sessions := core.NewSessionManager(repo, resolver, time.Hour, nil)
	var commitRepo core.Repository = repo
	if len(checkoutRepo) > 0 {
		commitRepo = checkoutRepo[0]
	}
	return &fixture{
		ctx:      context.Background(),
		repo:     repo,
		ledger:   ledger,
		catalog:  core.NewCatalogService(repo, ledger, nil),
		resolver: resolver,
		sessions: sessions,
		checkout: core.NewCheckoutEngine(commitRepo, sessions, nil),
		audit:    core.NewAuditEngine(repo, nil),
	}
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// addTablets creates an active tablet product sold by tablet (1), strip (10) and box (100).
func (f *fixture) addTablets(t *testing.T, name string, stock int64) *core.Product {
	t.Helper()
	p, err := f.catalog.SaveProduct(f.ctx, core.Product{
		Name:         name,
		Category:     "medicine",
		Type:         core.ProductTypeTablets,
		ReorderLevel: 20,
		CostPrice:    price("1.50"),
		IsActive:     true,
		Units: []core.Unit{
			{Type: core.UnitTablet, Label: "Tablet", Quantity: 1, Price: price("2.00")},
			{Type: core.UnitStrip, Label: "Strip of 10", Quantity: 10, Price: price("18.00")},
			{Type: core.UnitBox, Label: "Box of 100", Quantity: 100, Price: price("150.00")},
		},
	}, stock, "setup")
	require.NoError(t, err)
	return p
}

func (f *fixture) addService(t *testing.T, name string) *core.Product {
	t.Helper()
	p, err := f.catalog.SaveProduct(f.ctx, core.Product{
		Name:     name,
		Type:     core.ProductTypeService,
		IsActive: true,
		Units:    []core.Unit{{Type: core.UnitService, Label: "Service", Quantity: 1, Price: price("5.00")}},
	}, 0, "setup")
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, productID string) int64 {
	t.Helper()
	p, err := f.repo.GetProduct(f.ctx, productID)
	require.NoError(t, err)
	return p.StockQuantity
}

// requireConsistent asserts the cached stock equals the sum of the product's movements.
func (f *fixture) requireConsistent(t *testing.T, productIDs ...string) {
	t.Helper()
	for _, id := range productIDs {
		r, err := f.ledger.Reconcile(f.ctx, id)
		require.NoError(t, err)
		require.True(t, r.Consistent(), "product %s: cached %d, history %d", id, r.CachedStock, r.HistorySum)
	}
}
