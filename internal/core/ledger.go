package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// StockLedger is the only writer of product stock. Every change is an appended
// StockMovement; Product.StockQuantity is the running sum of those movements.
type StockLedger interface {
	// ApplyMovement validates the sign rule for the movement kind and applies it.
	// Returns *InsufficientStockError if stock would go negative.
	ApplyMovement(ctx context.Context, req MovementRequest) (*StockMovement, error)
	// ApplyBatch applies all requests or none of them.
	ApplyBatch(ctx context.Context, reqs []MovementRequest) ([]StockMovement, error)
	// Correct sets stock to an absolute value, recorded as a correction delta
	// against current stock. Returns nil and records nothing when stock already equals absolute.
	Correct(ctx context.Context, productID string, absolute int64, reason, actor string) (*StockMovement, error)
	History(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	// Reconcile compares the cached stock of a product with the sum of its history.
	Reconcile(ctx context.Context, productID string) (*Reconciliation, error)
}

type stockLedger struct {
	repo Repository
	log  *zap.Logger
}

func NewStockLedger(repo Repository, log *zap.Logger) StockLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &stockLedger{repo: repo, log: log}
}

func (l *stockLedger) ApplyMovement(ctx context.Context, req MovementRequest) (*StockMovement, error) {
	out, err := l.ApplyBatch(ctx, []MovementRequest{req})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (l *stockLedger) ApplyBatch(ctx context.Context, reqs []MovementRequest) ([]StockMovement, error) {
	if len(reqs) == 0 {
		return nil, invalid("movements", "at least one movement is required")
	}
	for i := range reqs {
		if err := l.check(ctx, &reqs[i]); err != nil {
			return nil, err
		}
	}

	out, err := l.repo.ApplyMovements(ctx, reqs)
	if err != nil {
		l.log.Warn("stock movement rejected", zap.Int("count", len(reqs)), zap.Error(err))
		return nil, err
	}
	for _, m := range out {
		l.log.Info("stock movement applied",
			zap.String("movement_id", m.ID),
			zap.String("product_id", m.ProductID),
			zap.String("kind", string(m.Kind)),
			zap.Int64("delta", m.Delta),
			zap.Int64("balance_after", m.BalanceAfter),
			zap.String("actor", m.Actor),
		)
	}
	return out, nil
}

func (l *stockLedger) Correct(ctx context.Context, productID string, absolute int64, reason, actor string) (*StockMovement, error) {
	if absolute < 0 {
		return nil, invalid("quantity", "corrected stock must not be negative")
	}
	return l.ApplyMovement(ctx, MovementRequest{
		ProductID: productID,
		SetTo:     &absolute,
		Kind:      MovementCorrection,
		Reason:    reason,
		Actor:     actor,
	})
}

func (l *stockLedger) History(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	return l.repo.ListMovements(ctx, filter)
}

func (l *stockLedger) Reconcile(ctx context.Context, productID string) (*Reconciliation, error) {
	p, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	moves, err := l.repo.ListMovements(ctx, MovementFilter{ProductID: productID})
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", productID, err)
	}
	r := &Reconciliation{
		ProductID:     p.ID,
		ProductName:   p.Name,
		CachedStock:   p.StockQuantity,
		MovementCount: len(moves),
	}
	for _, m := range moves {
		r.HistorySum += m.Delta
	}
	if !r.Consistent() {
		l.log.Error("stock diverged from history",
			zap.String("product_id", productID),
			zap.Int64("cached", r.CachedStock),
			zap.Int64("history_sum", r.HistorySum))
	}
	return r, nil
}

func (l *stockLedger) check(ctx context.Context, req *MovementRequest) error {
	if req.ProductID == "" {
		return invalid("product_id", "is required")
	}
	if strings.TrimSpace(req.Actor) == "" {
		return invalid("actor", "is required")
	}
	if req.SetTo != nil {
		if req.Kind != MovementCorrection {
			return invalid("kind", "only corrections may set an absolute quantity")
		}
		if *req.SetTo < 0 {
			return invalid("quantity", "corrected stock must not be negative")
		}
	} else if err := req.Kind.CheckDelta(req.Delta); err != nil {
		return err
	}

	p, err := l.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return err
	}
	if !p.Type.TracksStock() {
		return invalid("product_id", "product %s is not stock-tracked", p.ID)
	}
	return nil
}
