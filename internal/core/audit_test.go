package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/store/memory"
)

func TestComputeAudit_Reorder(t *testing.T) {
	sum := core.ComputeAudit([]core.AuditInput{
		{ProductID: "steady", ProductName: "Steady", TotalSold: 10, CurrentStock: 500, CostPrice: price("2")},
		{ProductID: "hot", ProductName: "Hot", TotalSold: 120, CurrentStock: 15, CostPrice: price("10")},
		{ProductID: "mid", ProductName: "Mid", TotalSold: 300, CurrentStock: 40, CostPrice: price("1")},
		{ProductID: "idle", ProductName: "Idle", TotalSold: 0, CurrentStock: 60, CostPrice: price("1")},
	})

	require.Len(t, sum.Reorders, 3, "well stocked slow movers are skipped")
	hot := sum.Reorders[0]
	assert.Equal(t, "hot", hot.ProductID)
	assert.InDelta(t, 4.0, hot.AvgDailySales, 1e-9)
	assert.InDelta(t, 3.75, hot.DaysOfStock, 1e-9)
	assert.Equal(t, int64(120), hot.SuggestedReorder)
	assert.Equal(t, "1200.00", hot.ReorderValue.StringFixed(2))
	assert.Equal(t, core.PriorityCritical, hot.Priority)

	assert.Equal(t, "mid", sum.Reorders[1].ProductID)
	assert.Equal(t, core.PriorityHigh, sum.Reorders[1].Priority)
	assert.Equal(t, int64(300), sum.Reorders[1].SuggestedReorder)

	idle := sum.Reorders[2]
	assert.Equal(t, core.PriorityLow, idle.Priority)
	assert.Equal(t, int64(100), idle.SuggestedReorder, "minimum reorder quantity")
	assert.InDelta(t, 999.0, idle.DaysOfStock, 1e-9)

	assert.Equal(t, "1600.00", sum.TotalReorderValue.StringFixed(2))
	assert.Empty(t, sum.Anomalies)
}

func TestComputeAudit_Valuation(t *testing.T) {
	counted := int64(8)
	sum := core.ComputeAudit([]core.AuditInput{{
		ProductID: "p", TotalSold: 20, TotalLost: 2, TotalAdjusted: -2,
		CurrentStock: 10, CostPrice: price("3"), CountedStock: &counted,
	}})

	require.Len(t, sum.Lines, 1)
	l := sum.Lines[0]
	assert.Equal(t, int64(32), l.OpeningStock, "opening is derived from closing, sold and adjustments")
	assert.Equal(t, "60.00", l.COGS.StringFixed(2))
	assert.Equal(t, "30.00", l.ClosingValue.StringFixed(2))
	assert.Equal(t, int64(2), l.Shrinkage)
	assert.Equal(t, int64(4), l.TotalLost)
	assert.Equal(t, "12.00", l.LossValue.StringFixed(2))
	assert.Equal(t, "12.00", sum.TotalMissingValue.StringFixed(2))
}

func TestComputeAudit_Anomalies(t *testing.T) {
	over := int64(50)
	sum := core.ComputeAudit([]core.AuditInput{
		{ProductID: "neg-cost", CurrentStock: 200, CostPrice: price("-4")},
		{ProductID: "neg-loss", CurrentStock: 200, TotalLost: -3, CostPrice: price("1")},
		{ProductID: "surplus", CurrentStock: 200, CostPrice: price("1"), CountedStock: &over},
	})
	assert.Len(t, sum.Anomalies, 2)
	assert.True(t, sum.Lines[0].CostPrice.IsZero())
	assert.Equal(t, int64(0), sum.Lines[1].TotalLost)
	assert.Equal(t, int64(150), sum.Lines[2].Shrinkage)

	over = 300
	sum = core.ComputeAudit([]core.AuditInput{{ProductID: "surplus", CurrentStock: 200, CostPrice: price("1"), CountedStock: &over}})
	require.Len(t, sum.Anomalies, 1)
	assert.Equal(t, int64(0), sum.Lines[0].Shrinkage)
}

func TestAuditEngine_Report(t *testing.T) {
	repo := memory.New()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	repo.SetClock(func() time.Time { return clock })
	f := newFixtureWithRepo(t, repo)

	p := f.addTablets(t, "Amoxicillin 500mg", 200)
	f.addService(t, "Consultation")

	apply := func(at time.Time, kind core.MovementKind, delta int64) {
		t.Helper()
		clock = at
		_, err := f.ledger.ApplyMovement(f.ctx, core.MovementRequest{ProductID: p.ID, Delta: delta, Kind: kind, Actor: "tester"})
		require.NoError(t, err)
	}
	apply(base.Add(24*time.Hour), core.MovementSale, -60)
	apply(base.Add(48*time.Hour), core.MovementSale, -40)
	apply(base.Add(72*time.Hour), core.MovementLoss, -5)
	apply(base.Add(96*time.Hour), core.MovementRestock, 20)
	apply(base.Add(40*24*time.Hour), core.MovementSale, -30) // after the period

	from := base.Add(12 * time.Hour)
	to := base.Add(30 * 24 * time.Hour)
	sum, err := f.audit.Report(f.ctx, core.AuditRequest{From: from, To: to, Counts: map[string]int64{p.ID: 110}})
	require.NoError(t, err)

	require.Len(t, sum.Lines, 1, "services are not audited")
	l := sum.Lines[0]
	assert.Equal(t, int64(100), l.TotalSold)
	assert.Equal(t, int64(15), l.TotalAdjusted)
	assert.Equal(t, int64(115), l.CurrentStock, "stock is rolled back to the end of the period")
	assert.Equal(t, int64(200), l.OpeningStock)
	assert.Equal(t, int64(5), l.Shrinkage)
	assert.Equal(t, int64(10), l.TotalLost)
	assert.Equal(t, from, sum.From)
	assert.Equal(t, int64(85), f.stock(t, p.ID), "audit only reads")

	_, err = f.audit.Report(f.ctx, core.AuditRequest{From: to, To: from})
	assert.ErrorIs(t, err, core.ErrValidation)
}

// salesDuringRead sells stock the first time the movement log is read, after the
// audit has already listed the products.
type salesDuringRead struct {
	*memory.Store
	during []core.MovementRequest
}

func (r *salesDuringRead) ListMovements(ctx context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	if len(r.during) > 0 {
		if _, err := r.Store.ApplyMovements(ctx, r.during); err != nil {
			return nil, err
		}
		r.during = nil
	}
	return r.Store.ListMovements(ctx, f)
}

func TestAuditEngine_ReportSeesOneSnapshot(t *testing.T) {
	f := newFixture(t)
	p := f.addTablets(t, "Omeprazole 20mg", 40)

	repo := &salesDuringRead{Store: f.repo, during: []core.MovementRequest{
		{ProductID: p.ID, Delta: -5, Kind: core.MovementSale, Actor: "till-2"},
	}}
	sum, err := core.NewAuditEngine(repo, nil).Report(f.ctx, core.AuditRequest{})
	require.NoError(t, err)

	require.Len(t, sum.Lines, 1)
	l := sum.Lines[0]
	assert.Equal(t, int64(5), l.TotalSold)
	assert.Equal(t, int64(35), l.CurrentStock)
	assert.Equal(t, int64(40), l.TotalAdjusted)
	assert.Equal(t, int64(0), l.OpeningStock, "the opening restock is the only stock that existed")
}
