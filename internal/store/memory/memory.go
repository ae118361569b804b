// Package memory is an in-process core.Repository, used by tests and by the
// server when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmacy-pos/internal/core"
)

// Store keeps everything in maps guarded by mu. Stock mutations additionally take
// a per-product lock, acquired in ascending ID order, for the whole check-and-apply.
type Store struct {
	mu            sync.RWMutex
	products      map[string]*core.Product
	movements     []core.StockMovement
	sales         map[string]*core.Sale
	saleOrder     []string
	credits       map[string]*core.CreditSale
	prescriptions map[string]*core.Prescription

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		products:      make(map[string]*core.Product),
		sales:         make(map[string]*core.Sale),
		credits:       make(map[string]*core.CreditSale),
		prescriptions: make(map[string]*core.Prescription),
		locks:         make(map[string]*sync.Mutex),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source for movements and sales.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

var _ core.Repository = (*Store)(nil)

// ── Products ──────────────────────────────────────────────────────────────────

func (s *Store) GetProduct(_ context.Context, id string) (*core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	out := p.Clone()
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context, f core.ProductFilter) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(f.Query)
	var out []core.Product
	for _, p := range s.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		if f.LowStockOnly && !p.IsLowStock() {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveProduct(_ context.Context, p *core.Product) error {
	lock := s.productLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := p.Clone()
	if cur, ok := s.products[p.ID]; ok {
		next.StockQuantity = cur.StockQuantity
		next.CreatedAt = cur.CreatedAt
	} else {
		next.StockQuantity = 0
	}
	s.products[p.ID] = &next
	return nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *Store) ApplyMovements(_ context.Context, reqs []core.MovementRequest) ([]core.StockMovement, error) {
	unlock := s.lockProducts(reqs)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(reqs)
}

func (s *Store) ListMovements(_ context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.StockMovement
	for _, m := range s.movements {
		if f.Matches(m) {
			out = append(out, m)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// applyLocked validates every request against the running balances before writing
// anything, so a failure leaves no trace. Caller holds the product locks and s.mu.
func (s *Store) applyLocked(reqs []core.MovementRequest) ([]core.StockMovement, error) {
	balance := make(map[string]int64)
	planned := make([]core.StockMovement, 0, len(reqs))
	now := s.now()

	for _, r := range reqs {
		p, ok := s.products[r.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", r.ProductID, core.ErrNotFound)
		}
		cur, seen := balance[r.ProductID]
		if !seen {
			cur = p.StockQuantity
		}
		delta, after, skip, err := r.Plan(cur)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		balance[r.ProductID] = after
		planned = append(planned, core.StockMovement{
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

	for id, b := range balance {
		s.products[id].StockQuantity = b
		s.products[id].UpdatedAt = now
	}
	s.movements = append(s.movements, planned...)
	return planned, nil
}

// lockProducts takes the per-product locks in sorted order and returns the release func.
func (s *Store) lockProducts(reqs []core.MovementRequest) func() {
	ids := make([]string, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if !seen[r.ProductID] {
			seen[r.ProductID] = true
			ids = append(ids, r.ProductID)
		}
	}
	sort.Strings(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		l := s.productLock(id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *Store) productLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (s *Store) CommitSale(_ context.Context, sale *core.Sale, credit *core.CreditSale, reqs []core.MovementRequest) ([]core.StockMovement, error) {
	unlock := s.lockProducts(reqs)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.sales[sale.ID]; dup {
		return nil, fmt.Errorf("sale %s already exists", sale.ID)
	}
	moves, err := s.applyLocked(reqs)
	if err != nil {
		return nil, err
	}
	stored := *sale
	stored.Items = append([]core.CartLine(nil), sale.Items...)
	s.sales[sale.ID] = &stored
	s.saleOrder = append(s.saleOrder, sale.ID)
	if credit != nil {
		c := *credit
		s.credits[c.ID] = &c
	}
	return moves, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*core.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("sale %s: %w", id, core.ErrNotFound)
	}
	out := *sale
	out.Items = append([]core.CartLine(nil), sale.Items...)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, f core.SaleFilter) ([]core.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Sale
	for i := len(s.saleOrder) - 1; i >= 0; i-- {
		sale := s.sales[s.saleOrder[i]]
		if !f.Matches(*sale) {
			continue
		}
		c := *sale
		c.Items = append([]core.CartLine(nil), sale.Items...)
		out = append(out, c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetCreditSale(_ context.Context, id string) (*core.CreditSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credits[id]
	if !ok {
		return nil, fmt.Errorf("credit sale %s: %w", id, core.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *Store) ListCreditSales(_ context.Context, f core.CreditFilter) ([]core.CreditSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.CreditSale
	for _, c := range s.credits {
		if f.Matches(*c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SettleCreditSale(_ context.Context, id, actor string, at time.Time) (*core.CreditSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[id]
	if !ok {
		return nil, fmt.Errorf("credit sale %s: %w", id, core.ErrNotFound)
	}
	if c.Status == core.CreditSettled {
		return nil, &core.ValidationError{Field: "status", Message: fmt.Sprintf("credit sale %s is already settled", id)}
	}
	c.Status = core.CreditSettled
	c.SettledAt = &at
	c.SettledBy = actor
	out := *c
	return &out, nil
}

// ── Prescriptions ─────────────────────────────────────────────────────────────

func (s *Store) SavePrescription(_ context.Context, rx *core.Prescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rx
	c.Items = append([]core.PrescriptionItem(nil), rx.Items...)
	s.prescriptions[rx.ID] = &c
	return nil
}

func (s *Store) GetPrescription(_ context.Context, id string) (*core.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rx, ok := s.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("prescription %s: %w", id, core.ErrNotFound)
	}
	out := *rx
	out.Items = append([]core.PrescriptionItem(nil), rx.Items...)
	return &out, nil
}
