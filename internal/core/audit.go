package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// salesWindowDays is the divisor for average daily sales.
	salesWindowDays = 30
	// reorderCoverDays is how many days of average sales a reorder should cover.
	reorderCoverDays = 30
	minReorderQty    = 100
	// noSalesDaysOfStock stands in for "infinite" days of stock when nothing sold.
	noSalesDaysOfStock = 999

	reorderStockThreshold = 100
	reorderSoldThreshold  = 50
)

type ReorderPriority string

const (
	PriorityCritical ReorderPriority = "critical"
	PriorityHigh     ReorderPriority = "high"
	PriorityMedium   ReorderPriority = "medium"
	PriorityLow      ReorderPriority = "low"
)

func (p ReorderPriority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	}
	return 3
}

// AuditInput is the per-product figure set the audit is computed from.
// CountedStock, when non-nil, is a physical count taken at the end of the period.
type AuditInput struct {
	ProductID     string
	ProductName   string
	TotalSold     int64
	TotalLost     int64
	TotalAdjusted int64 // signed; every non-sale movement
	CurrentStock  int64
	CostPrice     decimal.Decimal
	CountedStock  *int64
}

type AuditLine struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	OpeningStock  int64           `json:"opening_stock"`
	OpeningValue  decimal.Decimal `json:"opening_value"`
	TotalSold     int64           `json:"total_sold"`
	COGS          decimal.Decimal `json:"cogs"`
	TotalLost     int64           `json:"total_lost"`
	Shrinkage     int64           `json:"shrinkage"`
	LossValue     decimal.Decimal `json:"loss_value"`
	TotalAdjusted int64           `json:"total_adjusted"`
	CurrentStock  int64           `json:"current_stock"`
	CountedStock  *int64          `json:"counted_stock,omitempty"`
	ClosingValue  decimal.Decimal `json:"closing_value"`
	CostPrice     decimal.Decimal `json:"cost_price"`
}

type ReorderRecommendation struct {
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	CurrentStock     int64           `json:"current_stock"`
	TotalSold        int64           `json:"total_sold"`
	AvgDailySales    float64         `json:"avg_daily_sales"`
	DaysOfStock      float64         `json:"days_of_stock"`
	SuggestedReorder int64           `json:"suggested_reorder"`
	ReorderValue     decimal.Decimal `json:"reorder_value"`
	Priority         ReorderPriority `json:"priority"`
}

// AuditAnomaly is bad input the audit worked around instead of failing on.
type AuditAnomaly struct {
	ProductID string `json:"product_id"`
	Message   string `json:"message"`
}

type AuditSummary struct {
	From              time.Time               `json:"from"`
	To                time.Time               `json:"to"`
	Lines             []AuditLine             `json:"lines"`
	Reorders          []ReorderRecommendation `json:"reorders"`
	Anomalies         []AuditAnomaly          `json:"anomalies"`
	TotalOpeningValue decimal.Decimal         `json:"total_opening_value"`
	TotalClosingValue decimal.Decimal         `json:"total_closing_value"`
	TotalCOGS         decimal.Decimal         `json:"total_cogs"`
	TotalMissingValue decimal.Decimal         `json:"total_missing_value"`
	TotalReorderValue decimal.Decimal         `json:"total_reorder_value"`
}

// ComputeAudit is the pure valuation and reorder calculation. It never fails:
// negative cost prices and losses are clamped to zero and reported as anomalies.
func ComputeAudit(inputs []AuditInput) *AuditSummary {
	sum := &AuditSummary{
		TotalOpeningValue: decimal.Zero,
		TotalClosingValue: decimal.Zero,
		TotalCOGS:         decimal.Zero,
		TotalMissingValue: decimal.Zero,
		TotalReorderValue: decimal.Zero,
	}

	for _, in := range inputs {
		cost := in.CostPrice
		if cost.IsNegative() {
			sum.Anomalies = append(sum.Anomalies, AuditAnomaly{in.ProductID, fmt.Sprintf("negative cost price %s treated as zero", cost)})
			cost = decimal.Zero
		}
		lost := in.TotalLost
		if lost < 0 {
			sum.Anomalies = append(sum.Anomalies, AuditAnomaly{in.ProductID, fmt.Sprintf("negative loss %d clamped to zero", lost)})
			lost = 0
		}

		line := AuditLine{
			ProductID:     in.ProductID,
			ProductName:   in.ProductName,
			TotalSold:     in.TotalSold,
			TotalAdjusted: in.TotalAdjusted,
			CurrentStock:  in.CurrentStock,
			CountedStock:  in.CountedStock,
			CostPrice:     cost,
		}
		if in.CountedStock != nil {
			counted := *in.CountedStock
			switch {
			case counted < 0:
				sum.Anomalies = append(sum.Anomalies, AuditAnomaly{in.ProductID, fmt.Sprintf("negative count %d ignored", counted)})
			case counted < in.CurrentStock:
				line.Shrinkage = in.CurrentStock - counted
				lost += line.Shrinkage
			case counted > in.CurrentStock:
				sum.Anomalies = append(sum.Anomalies, AuditAnomaly{in.ProductID,
					fmt.Sprintf("counted %d exceeds recorded stock %d", counted, in.CurrentStock)})
			}
		}
		line.TotalLost = lost

		line.OpeningStock = in.CurrentStock + in.TotalSold - in.TotalAdjusted
		line.OpeningValue = cost.Mul(decimal.NewFromInt(line.OpeningStock))
		line.COGS = cost.Mul(decimal.NewFromInt(in.TotalSold))
		line.ClosingValue = cost.Mul(decimal.NewFromInt(in.CurrentStock))
		line.LossValue = cost.Mul(decimal.NewFromInt(lost))

		sum.TotalOpeningValue = sum.TotalOpeningValue.Add(line.OpeningValue)
		sum.TotalClosingValue = sum.TotalClosingValue.Add(line.ClosingValue)
		sum.TotalCOGS = sum.TotalCOGS.Add(line.COGS)
		if lost > 0 {
			sum.TotalMissingValue = sum.TotalMissingValue.Add(line.LossValue)
		}
		sum.Lines = append(sum.Lines, line)

		if rec, ok := recommendReorder(in, cost); ok {
			sum.Reorders = append(sum.Reorders, rec)
			sum.TotalReorderValue = sum.TotalReorderValue.Add(rec.ReorderValue)
		}
	}

	sort.SliceStable(sum.Reorders, func(i, j int) bool {
		a, b := sum.Reorders[i], sum.Reorders[j]
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() < b.Priority.rank()
		}
		return a.TotalSold > b.TotalSold
	})
	return sum
}

func recommendReorder(in AuditInput, cost decimal.Decimal) (ReorderRecommendation, bool) {
	if in.CurrentStock >= reorderStockThreshold && in.TotalSold <= reorderSoldThreshold {
		return ReorderRecommendation{}, false
	}
	rec := ReorderRecommendation{
		ProductID:    in.ProductID,
		ProductName:  in.ProductName,
		CurrentStock: in.CurrentStock,
		TotalSold:    in.TotalSold,
	}
	rec.AvgDailySales = float64(in.TotalSold) / salesWindowDays
	if rec.AvgDailySales > 0 {
		rec.DaysOfStock = float64(in.CurrentStock) / rec.AvgDailySales
	} else {
		rec.DaysOfStock = noSalesDaysOfStock
	}
	// ceil(avgDailySales * reorderCoverDays) in integer arithmetic.
	rec.SuggestedReorder = ceilDiv(in.TotalSold*reorderCoverDays, salesWindowDays)
	if rec.SuggestedReorder < minReorderQty {
		rec.SuggestedReorder = minReorderQty
	}
	rec.ReorderValue = cost.Mul(decimal.NewFromInt(rec.SuggestedReorder))

	switch {
	case in.CurrentStock < 20:
		rec.Priority = PriorityCritical
	case in.CurrentStock < 50:
		rec.Priority = PriorityHigh
	case in.TotalSold > 100:
		rec.Priority = PriorityMedium
	default:
		rec.Priority = PriorityLow
	}
	return rec, true
}

// AuditRequest selects the period and optional physical counts keyed by product ID.
type AuditRequest struct {
	From   time.Time
	To     time.Time
	Counts map[string]int64
}

// AuditEngine derives audit inputs from the movement history. It only reads.
type AuditEngine struct {
	repo Repository
	log  *zap.Logger
}

func NewAuditEngine(repo Repository, log *zap.Logger) *AuditEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditEngine{repo: repo, log: log}
}

// Report builds the audit for every stock-tracked product over [From, To).
func (a *AuditEngine) Report(ctx context.Context, req AuditRequest) (*AuditSummary, error) {
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return nil, invalid("period", "from must be before to")
	}
	products, err := a.repo.ListProducts(ctx, ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	// Movements are read after the products, and stock at the end of the period is
	// taken from their BalanceAfter, so a movement landing between the two reads is
	// counted consistently. Movements after the period are loaded too so stock can
	// be rolled back to its value at the end of the period.
	moves, err := a.repo.ListMovements(ctx, MovementFilter{From: req.From})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	byProduct := make(map[string][]StockMovement)
	endStock := make(map[string]int64)
	for _, m := range moves {
		if !req.To.IsZero() && !m.CreatedAt.Before(req.To) {
			if _, ok := endStock[m.ProductID]; !ok {
				endStock[m.ProductID] = m.BalanceAfter - m.Delta
			}
			continue
		}
		endStock[m.ProductID] = m.BalanceAfter
		byProduct[m.ProductID] = append(byProduct[m.ProductID], m)
	}

	inputs := make([]AuditInput, 0, len(products))
	for _, p := range products {
		if !p.Type.TracksStock() {
			continue
		}
		current, ok := endStock[p.ID]
		if !ok {
			current = p.StockQuantity
		}
		in := AuditInput{
			ProductID:    p.ID,
			ProductName:  p.Name,
			CurrentStock: current,
			CostPrice:    p.CostPrice,
		}
		for _, m := range byProduct[p.ID] {
			switch m.Kind {
			case MovementSale:
				in.TotalSold -= m.Delta
				continue
			case MovementLoss:
				in.TotalLost -= m.Delta
			}
			in.TotalAdjusted += m.Delta
		}
		if c, ok := req.Counts[p.ID]; ok {
			counted := c
			in.CountedStock = &counted
		}
		inputs = append(inputs, in)
	}

	sum := ComputeAudit(inputs)
	sum.From, sum.To = req.From, req.To
	a.log.Info("audit computed",
		zap.Int("products", len(inputs)),
		zap.Int("reorders", len(sum.Reorders)),
		zap.Int("anomalies", len(sum.Anomalies)))
	return sum, nil
}
