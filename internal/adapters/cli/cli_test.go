package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/adapters/cli"
	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/store/memory"
)

func seeded(t *testing.T) (app.ApplicationService, *core.Product) {
	t.Helper()
	svc := app.NewAppService(memory.New(), time.Hour, nil)
	p, err := svc.SaveProduct(context.Background(), app.SaveProductRequest{
		Name: "Metformin 500mg", Type: core.ProductTypeTablets, IsActive: true,
		CostPrice: decimal.RequireFromString("0.20"), ReorderLevel: 50,
		Units: []core.Unit{
			{Type: core.UnitTablet, Label: "Tablet", Quantity: 1, Price: decimal.RequireFromString("0.50")},
			{Type: core.UnitStrip, Label: "Strip of 10", Quantity: 10, Price: decimal.RequireFromString("4.50")},
		},
		OpeningStock: 40, Actor: "setup",
	})
	require.NoError(t, err)
	return svc, p
}

func TestRunStock(t *testing.T) {
	svc, p := seeded(t)
	var out bytes.Buffer
	require.NoError(t, cli.Run(context.Background(), svc, []string{"stock", "low"}, &out))
	assert.Contains(t, out.String(), p.ID)
	assert.Contains(t, out.String(), "40 LOW")
}

func TestRunMovementsAndVerify(t *testing.T) {
	svc, p := seeded(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, cli.Run(ctx, svc, []string{"movements", p.ID}, &out))
	var mv app.MovementListResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &mv))
	require.Len(t, mv.Movements, 1)
	assert.Equal(t, core.MovementRestock, mv.Movements[0].Kind)

	out.Reset()
	require.NoError(t, cli.Run(ctx, svc, []string{"verify"}, &out))
	var v app.VerifyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, 1, v.Checked)
}

func TestRunAudit(t *testing.T) {
	svc, p := seeded(t)
	var out bytes.Buffer
	require.NoError(t, cli.Run(context.Background(), svc, []string{"audit", "7"}, &out))
	var sum core.AuditSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, p.ID, sum.Lines[0].ProductID)
}

func TestRunUsage(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.ErrorIs(t, cli.Run(ctx, svc, nil, &out), cli.ErrUsage)
	assert.ErrorIs(t, cli.Run(ctx, svc, []string{"bogus"}, &out), cli.ErrUsage)
	assert.ErrorIs(t, cli.Run(ctx, svc, []string{"movements"}, &out), cli.ErrUsage)
	assert.ErrorIs(t, cli.Run(ctx, svc, []string{"audit", "-1"}, &out), cli.ErrUsage)
	assert.ErrorIs(t, cli.Run(ctx, svc, []string{"sales", "last-week"}, &out), cli.ErrUsage)
	assert.ErrorIs(t, cli.Run(ctx, svc, []string{"product", "missing"}, &out), core.ErrNotFound)
}
