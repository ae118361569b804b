package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmacy-pos/internal/core"
)

// CommitSale writes the stock movements, the sale, its lines and the credit record
// in one transaction. Any failure rolls every part back.
func (s *Store) CommitSale(ctx context.Context, sale *core.Sale, credit *core.CreditSale, reqs []core.MovementRequest) ([]core.StockMovement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	moves, err := s.applyMovementsTx(ctx, tx, reqs)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sales (id, subtotal, discount, tax, total, payment_method, cashier_id, cashier_name,
		                   customer_name, customer_phone, is_credit, credit_sale_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, sale.ID, sale.Subtotal, sale.Discount, sale.Tax, sale.Total, string(sale.PaymentMethod),
		sale.CashierID, sale.CashierName, sale.CustomerName, sale.CustomerPhone,
		sale.IsCredit, sale.CreditSaleID, sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	for i, l := range sale.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO sale_items (sale_id, line_number, product_id, product_name, unit_type, unit_label,
			                        unit_quantity, quantity, unit_price, line_total, cost_basis, untracked)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, sale.ID, i+1, l.ProductID, l.ProductName, string(l.UnitType), l.UnitLabel,
			l.UnitQuantity, l.Quantity, l.UnitPrice, l.LineTotal, l.CostBasis, l.Untracked)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale line %d: %w", i+1, err)
		}
	}

	if credit != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO credit_sales (id, sale_id, customer_name, customer_phone, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, credit.ID, credit.SaleID, credit.CustomerName, credit.CustomerPhone, credit.Amount,
			string(credit.Status), credit.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert credit sale: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}
	return moves, nil
}

const saleColumns = `id, subtotal, discount, tax, total, payment_method, cashier_id, cashier_name,
	customer_name, customer_phone, is_credit, credit_sale_id, created_at`

func scanSale(row pgx.Row) (*core.Sale, error) {
	var s core.Sale
	err := row.Scan(&s.ID, &s.Subtotal, &s.Discount, &s.Tax, &s.Total, &s.PaymentMethod,
		&s.CashierID, &s.CashierName, &s.CustomerName, &s.CustomerPhone, &s.IsCredit,
		&s.CreditSaleID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*core.Sale, error) {
	sale, err := scanSale(s.pool.QueryRow(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale: %w", err)
	}
	items, err := s.loadSaleItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	sale.Items = items[id]
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, f core.SaleFilter) ([]core.Sale, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if f.CashierID != "" {
		add("cashier_id = $%d", f.CashierID)
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", string(f.PaymentMethod))
	}

	query := "SELECT " + saleColumns + " FROM sales"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var (
		sales []core.Sale
		ids   []string
	)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := s.loadSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]core.CartLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sale_id, product_id, product_name, unit_type, unit_label, unit_quantity, quantity,
		       unit_price, line_total, cost_basis, untracked
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_number
	`, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.CartLine, len(saleIDs))
	for rows.Next() {
		var (
			saleID string
			l      core.CartLine
		)
		if err := rows.Scan(&saleID, &l.ProductID, &l.ProductName, &l.UnitType, &l.UnitLabel,
			&l.UnitQuantity, &l.Quantity, &l.UnitPrice, &l.LineTotal, &l.CostBasis, &l.Untracked); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		out[saleID] = append(out[saleID], l)
	}
	return out, rows.Err()
}

// ── Credit sales ──────────────────────────────────────────────────────────────

const creditColumns = `id, sale_id, customer_name, customer_phone, amount, status, created_at, settled_at, settled_by`

func scanCredit(row pgx.Row) (*core.CreditSale, error) {
	var c core.CreditSale
	err := row.Scan(&c.ID, &c.SaleID, &c.CustomerName, &c.CustomerPhone, &c.Amount, &c.Status,
		&c.CreatedAt, &c.SettledAt, &c.SettledBy)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCreditSale(ctx context.Context, id string) (*core.CreditSale, error) {
	c, err := scanCredit(s.pool.QueryRow(ctx, "SELECT "+creditColumns+" FROM credit_sales WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("credit sale %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch credit sale: %w", err)
	}
	return c, nil
}

func (s *Store) ListCreditSales(ctx context.Context, f core.CreditFilter) ([]core.CreditSale, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.SettledFrom.IsZero() {
		add("settled_at >= $%d", f.SettledFrom)
	}
	if !f.SettledTo.IsZero() {
		add("settled_at < $%d", f.SettledTo)
	}

	query := "SELECT " + creditColumns + " FROM credit_sales"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit sales: %w", err)
	}
	defer rows.Close()

	var out []core.CreditSale
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit sale: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) SettleCreditSale(ctx context.Context, id, actor string, at time.Time) (*core.CreditSale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status core.CreditStatus
	err = tx.QueryRow(ctx, "SELECT status FROM credit_sales WHERE id = $1 FOR UPDATE", id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("credit sale %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock credit sale: %w", err)
	}
	if status == core.CreditSettled {
		return nil, &core.ValidationError{Field: "status", Message: fmt.Sprintf("credit sale %s is already settled", id)}
	}

	c, err := scanCredit(tx.QueryRow(ctx, `
		UPDATE credit_sales SET status = $1, settled_at = $2, settled_by = $3
		WHERE id = $4
		RETURNING `+creditColumns,
		string(core.CreditSettled), at, actor, id))
	if err != nil {
		return nil, fmt.Errorf("failed to settle credit sale: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return c, nil
}
