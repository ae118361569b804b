package repl

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/store/memory"
)

func TestSessionSellsByName(t *testing.T) {
	ctx := context.Background()
	svc := app.NewAppService(memory.New(), time.Hour, nil)
	p, err := svc.SaveProduct(ctx, app.SaveProductRequest{
		Name: "Loratadine 10mg", Type: core.ProductTypeTablets, IsActive: true,
		Units: []core.Unit{
			{Type: core.UnitTablet, Label: "Tablet", Quantity: 1, Price: decimal.NewFromInt(1)},
			{Type: core.UnitStrip, Label: "Strip of 10", Quantity: 10, Price: decimal.NewFromInt(8)},
		},
		OpeningStock: 30, Actor: "setup",
	})
	require.NoError(t, err)

	script := strings.Join([]string{
		"/add loratadine strip 2",
		"/qty 1 -1",
		"/add " + p.ID + " tablet",
		"/checkout",
		"y",
		"/exit",
	}, "\n") + "\n"
	Run(ctx, svc, bufio.NewReader(strings.NewReader(script)), Cashier{ID: "till-2", Name: "Yaw"})

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(19), got.StockQuantity)

	sales, err := svc.ListSales(ctx, core.SaleFilter{CashierID: "till-2"})
	require.NoError(t, err)
	require.Len(t, sales.Sales, 1)
	assert.True(t, decimal.NewFromInt(9).Equal(sales.Sales[0].Total))
}

func TestCheckoutNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	svc := app.NewAppService(memory.New(), time.Hour, nil)
	p, err := svc.SaveProduct(ctx, app.SaveProductRequest{
		Name: "Vitamin C", Type: core.ProductTypeIndividual, IsActive: true,
		Units:        []core.Unit{{Type: core.UnitPiece, Label: "Piece", Quantity: 1, Price: decimal.NewFromInt(3)}},
		OpeningStock: 5, Actor: "setup",
	})
	require.NoError(t, err)

	script := "/add " + p.ID + " piece\n/checkout\nn\n"
	Run(ctx, svc, bufio.NewReader(strings.NewReader(script)), Cashier{ID: "till-3", Name: "Abena"})

	assert.Len(t, svc.Cart(ctx, "till-3").Lines, 1, "declined checkout keeps the cart")
	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.StockQuantity)
}

func TestLineArg(t *testing.T) {
	idx, err := lineArg("2")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	_, err = lineArg("0")
	assert.Error(t, err)
	_, err = lineArg("x")
	assert.Error(t, err)
}

func TestNewProductReasksBadCounts(t *testing.T) {
	ctx := context.Background()
	svc := app.NewAppService(memory.New(), time.Hour, nil)

	script := strings.Join([]string{
		"/new-product",
		"Calamine lotion",
		"skin",
		"syrup",
		"bottle 1 25.00 Bottle",
		"done",
		"2.50",
		"1o",
		"15",
		"-3",
		"abc",
		"40",
		"/exit",
	}, "\n") + "\n"
	Run(ctx, svc, bufio.NewReader(strings.NewReader(script)), Cashier{ID: "till-4", Name: "Kwame"})

	res, err := svc.ListProducts(ctx, app.ProductQuery{Query: "calamine"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	p := res.Products[0]
	assert.Equal(t, int64(15), p.ReorderLevel)
	assert.Equal(t, int64(40), p.StockQuantity)
}

func TestPromptCount(t *testing.T) {
	n, ok := promptCount(bufio.NewReader(strings.NewReader("\n")), "")
	assert.True(t, ok)
	assert.Zero(t, n)

	_, ok = promptCount(bufio.NewReader(strings.NewReader("x\n")), "")
	assert.False(t, ok, "input ran out before a valid number")
}
