package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pharmacy-pos/internal/core"
)

func (s *Store) ApplyMovements(ctx context.Context, reqs []core.MovementRequest) ([]core.StockMovement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	moves, err := s.applyMovementsTx(ctx, tx, reqs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock movements: %w", err)
	}
	return moves, nil
}

// applyMovementsTx locks every affected product row in ascending id order, checks
// the running balances, then appends the movements and updates the cached stock.
func (s *Store) applyMovementsTx(ctx context.Context, tx pgx.Tx, reqs []core.MovementRequest) ([]core.StockMovement, error) {
	ids := make([]string, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if !seen[r.ProductID] {
			seen[r.ProductID] = true
			ids = append(ids, r.ProductID)
		}
	}
	sort.Strings(ids)

	balance := make(map[string]int64, len(ids))
	for _, id := range ids {
		var stock int64
		err := tx.QueryRow(ctx, "SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE", id).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to lock product %s: %w", id, err)
		}
		balance[id] = stock
	}

	now := s.now()
	moves := make([]core.StockMovement, 0, len(reqs))
	for _, r := range reqs {
		cur := balance[r.ProductID]
		delta, after, skip, err := r.Plan(cur)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		balance[r.ProductID] = after
		moves = append(moves, core.StockMovement{
			ID:           uuid.NewString(),
			ProductID:    r.ProductID,
			Delta:        delta,
			Kind:         r.Kind,
			Reason:       r.Reason,
			Reference:    r.Reference,
			Actor:        r.Actor,
			BalanceAfter: after,
			CreatedAt:    now,
		})
	}

	for _, m := range moves {
		_, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (id, product_id, delta, kind, reason, reference, actor, balance_after, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, m.ID, m.ProductID, m.Delta, string(m.Kind), m.Reason, m.Reference, m.Actor, m.BalanceAfter, m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert stock movement: %w", err)
		}
	}
	for _, id := range ids {
		_, err := tx.Exec(ctx,
			"UPDATE products SET stock_quantity = $1, updated_at = $2 WHERE id = $3",
			balance[id], now, id)
		if err != nil {
			return nil, fmt.Errorf("failed to update stock for %s: %w", id, err)
		}
	}
	return moves, nil
}

func (s *Store) ListMovements(ctx context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	query := `SELECT seq, id, product_id, delta, kind, reason, reference, actor, balance_after, created_at
		FROM stock_movements` + where + " ORDER BY seq"
	if f.Limit > 0 {
		// newest N, returned oldest first
		query = fmt.Sprintf(`SELECT * FROM (
			SELECT seq, id, product_id, delta, kind, reason, reference, actor, balance_after, created_at
			FROM stock_movements%s ORDER BY seq DESC LIMIT %d
		) recent ORDER BY seq`, where, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		var (
			seq int64
			m   core.StockMovement
		)
		if err := rows.Scan(&seq, &m.ID, &m.ProductID, &m.Delta, &m.Kind, &m.Reason, &m.Reference,
			&m.Actor, &m.BalanceAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		m.CreatedAt = m.CreatedAt.In(time.UTC)
		out = append(out, m)
	}
	return out, rows.Err()
}
