package core

import (
	"math"
	"time"
)

// MovementKind classifies a stock movement and fixes the sign its delta may take.
type MovementKind string

const (
	MovementSale       MovementKind = "sale"
	MovementRestock    MovementKind = "restock"
	MovementCorrection MovementKind = "correction"
	MovementLoss       MovementKind = "loss"
	MovementReturn     MovementKind = "return"
)

func (k MovementKind) IsValid() bool {
	switch k {
	case MovementSale, MovementRestock, MovementCorrection, MovementLoss, MovementReturn:
		return true
	}
	return false
}

// CheckDelta enforces the sign rule for k.
func (k MovementKind) CheckDelta(delta int64) error {
	switch k {
	case MovementSale, MovementLoss:
		if delta >= 0 {
			return invalid("delta", "%s movements must be negative, got %d", k, delta)
		}
	case MovementRestock, MovementReturn:
		if delta <= 0 {
			return invalid("delta", "%s movements must be positive, got %d", k, delta)
		}
	case MovementCorrection:
		if delta == 0 {
			return invalid("delta", "correction delta must be non-zero")
		}
	default:
		return invalid("kind", "unknown movement kind %q", k)
	}
	return nil
}

// StockMovement is one immutable entry of a product's stock history.
// BalanceAfter is the product's stock once the movement was applied.
type StockMovement struct {
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	Delta        int64        `json:"delta"`
	Kind         MovementKind `json:"kind"`
	Reason       string       `json:"reason"`
	Reference    string       `json:"reference,omitempty"`
	Actor        string       `json:"actor"`
	BalanceAfter int64        `json:"balance_after"`
	CreatedAt    time.Time    `json:"created_at"`
}

// MovementRequest asks the store to apply a delta to a product's stock.
// When SetTo is non-nil the store computes Delta = *SetTo - current under the
// product lock instead, and records nothing if that delta is zero.
type MovementRequest struct {
	ProductID string
	Delta     int64
	SetTo     *int64
	Kind      MovementKind
	Reason    string
	Reference string
	Actor     string
}

// Plan resolves r against the current balance cur and returns the delta to record
// and the balance after it. skip is true when a SetTo already equals cur.
// Stores call Plan under the product lock for every request they apply.
func (r MovementRequest) Plan(cur int64) (delta, after int64, skip bool, err error) {
	if r.SetTo != nil {
		if *r.SetTo < 0 {
			return 0, 0, false, invalid("quantity", "corrected stock must not be negative")
		}
		delta = *r.SetTo - cur
		if delta == 0 {
			return 0, cur, true, nil
		}
	} else {
		if err := r.Kind.CheckDelta(r.Delta); err != nil {
			return 0, 0, false, err
		}
		delta = r.Delta
	}
	if delta > 0 && cur > math.MaxInt64-delta {
		return 0, 0, false, invalid("delta", "stock of %s would overflow", r.ProductID)
	}
	if cur+delta < 0 {
		requested := -delta
		switch {
		case r.SetTo != nil:
			requested = *r.SetTo
		case delta == math.MinInt64:
			requested = math.MaxInt64
		}
		return 0, 0, false, &InsufficientStockError{ProductID: r.ProductID, Requested: requested, Available: cur}
	}
	return delta, cur + delta, false, nil
}

// MovementFilter narrows History. Zero values mean "no filter".
type MovementFilter struct {
	ProductID string
	Kind      MovementKind
	From      time.Time
	To        time.Time
	Limit     int
}

// Matches reports whether m passes the filter. Limit is not considered.
func (f MovementFilter) Matches(m StockMovement) bool {
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() && m.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !m.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Reconciliation compares a product's cached stock with the fold over its history.
type Reconciliation struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	CachedStock   int64  `json:"cached_stock"`
	HistorySum    int64  `json:"history_sum"`
	MovementCount int    `json:"movement_count"`
}

func (r Reconciliation) Consistent() bool { return r.CachedStock == r.HistorySum }
