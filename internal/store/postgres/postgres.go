// Package postgres is the pgx-backed core.Repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pharmacy-pos/internal/core"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

var _ core.Repository = (*Store)(nil)

// ── Products ──────────────────────────────────────────────────────────────────

const productColumns = `id, name, category, product_type, stock_quantity, reorder_level,
	cost_price, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*core.Product, error) {
	var p core.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Type, &p.StockQuantity, &p.ReorderLevel,
		&p.CostPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	return s.getProduct(ctx, s.pool, id)
}

func (s *Store) getProduct(ctx context.Context, q pgxQuerier, id string) (*core.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch product %s: %w", id, err)
	}
	units, err := s.loadUnits(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	p.Units = units[id]
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, f core.ProductFilter) ([]core.Product, error) {
	var (
		conds []string
		args  []any
	)
	if f.Query != "" {
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
		conds = append(conds, fmt.Sprintf("lower(name) LIKE $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active = true")
	}
	if f.LowStockOnly {
		conds = append(conds, fmt.Sprintf("product_type <> '%s' AND stock_quantity <= reorder_level", core.ProductTypeService))
	}
	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var (
		products []core.Product
		ids      []string
	)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	units, err := s.loadUnits(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Units = units[products[i].ID]
	}
	return products, nil
}

func (s *Store) loadUnits(ctx context.Context, q pgxQuerier, ids []string) (map[string][]core.Unit, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, unit_type, label, quantity, price
		FROM product_units
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query product units: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.Unit, len(ids))
	for rows.Next() {
		var (
			productID string
			u         core.Unit
		)
		if err := rows.Scan(&productID, &u.Type, &u.Label, &u.Quantity, &u.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product unit: %w", err)
		}
		out[productID] = append(out[productID], u)
	}
	return out, rows.Err()
}

// SaveProduct upserts catalog fields and replaces the unit list. stock_quantity is
// never written here.
func (s *Store) SaveProduct(ctx context.Context, p *core.Product) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO products (id, name, category, product_type, reorder_level, cost_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			product_type = EXCLUDED.product_type,
			reorder_level = EXCLUDED.reorder_level,
			cost_price = EXCLUDED.cost_price,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Category, string(p.Type), p.ReorderLevel, p.CostPrice, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM product_units WHERE product_id = $1", p.ID); err != nil {
		return fmt.Errorf("failed to clear product units: %w", err)
	}
	for i, u := range p.Units {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_units (product_id, position, unit_type, label, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, i, string(u.Type), u.Label, u.Quantity, u.Price)
		if err != nil {
			return fmt.Errorf("failed to insert unit %s: %w", u.Type, err)
		}
	}
	return tx.Commit(ctx)
}

// ── Prescriptions ─────────────────────────────────────────────────────────────

func (s *Store) SavePrescription(ctx context.Context, rx *core.Prescription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO prescriptions (id, patient_name, patient_phone, prescriber, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			patient_phone = EXCLUDED.patient_phone,
			prescriber = EXCLUDED.prescriber
	`, rx.ID, rx.PatientName, rx.PatientPhone, rx.Prescriber, rx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert prescription: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM prescription_items WHERE prescription_id = $1", rx.ID); err != nil {
		return fmt.Errorf("failed to clear prescription items: %w", err)
	}
	for i, it := range rx.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO prescription_items (prescription_id, position, medicine, dosage, frequency, duration, instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rx.ID, i, it.Medicine, it.Dosage, it.Frequency, it.Duration, it.Instructions)
		if err != nil {
			return fmt.Errorf("failed to insert prescription item %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetPrescription(ctx context.Context, id string) (*core.Prescription, error) {
	var rx core.Prescription
	err := s.pool.QueryRow(ctx, `
		SELECT id, patient_name, patient_phone, prescriber, created_at
		FROM prescriptions WHERE id = $1
	`, id).Scan(&rx.ID, &rx.PatientName, &rx.PatientPhone, &rx.Prescriber, &rx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("prescription %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch prescription: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT medicine, dosage, frequency, duration, instructions
		FROM prescription_items WHERE prescription_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescription items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it core.PrescriptionItem
		if err := rows.Scan(&it.Medicine, &it.Dosage, &it.Frequency, &it.Duration, &it.Instructions); err != nil {
			return nil, fmt.Errorf("failed to scan prescription item: %w", err)
		}
		rx.Items = append(rx.Items, it)
	}
	return &rx, rows.Err()
}
