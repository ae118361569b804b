package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// CartSession is one cashier's working set of prospective sale lines.
// Stock checks here are optimistic; checkout re-checks under the product locks.
// Every method either succeeds fully or leaves the session unchanged.
type CartSession struct {
	mu sync.Mutex

	cashierID     string
	lines         []CartLine
	customerName  string
	customerPhone string
	payment       PaymentMethod
	createdAt     time.Time

	// Read by the SessionManager without taking mu, which checkout holds
	// across the repository commit.
	touchedAt atomic.Int64 // unix nanos
	closed    atomic.Bool

	repo     Repository
	resolver *PrescriptionResolver
}

// CartView is a point-in-time copy of a session for rendering.
type CartView struct {
	CashierID     string          `json:"cashier_id"`
	Lines         []CartLine      `json:"lines"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	CostTotal     decimal.Decimal `json:"cost_total"`
	ItemCount     int64           `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
	TouchedAt     time.Time       `json:"touched_at"`
}

// EmptyCartView is what a cashier without a session sees.
func EmptyCartView(cashierID string) *CartView {
	return &CartView{
		CashierID:     cashierID,
		PaymentMethod: PaymentCash,
		Subtotal:      decimal.Zero,
		CostTotal:     decimal.Zero,
	}
}

func newCartSession(cashierID string, repo Repository, resolver *PrescriptionResolver, now time.Time) *CartSession {
	c := &CartSession{
		cashierID: cashierID,
		payment:   PaymentCash,
		createdAt: now,
		repo:      repo,
		resolver:  resolver,
	}
	c.touchedAt.Store(now.UnixNano())
	return c
}

func (c *CartSession) CashierID() string { return c.cashierID }

// AddItem adds one unitType unit of the product, incrementing an existing
// (product, unit) line. The product's base units reserved across the whole cart
// plus the new unit must fit in current stock.
func (c *CartSession) AddItem(ctx context.Context, productID string, unitType UnitType) (*CartView, error) {
	p, err := c.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, invalid("product_id", "product %s is not active", p.Name)
	}
	unit, err := ResolveUnit(p, unitType)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}

	i := c.find(p.ID, unit.Type)
	if i >= 0 && c.lines[i].Quantity >= MaxLineQuantity {
		return nil, invalid("quantity", "a line may hold at most %d units", MaxLineQuantity)
	}
	if err := c.checkStock(p, unit.Quantity, 1); err != nil {
		return nil, err
	}

	if i >= 0 {
		c.lines[i].Quantity++
		c.lines[i].recompute()
	} else {
		c.lines = append(c.lines, newCartLine(p, unit, 1))
	}
	c.touch()
	return c.viewLocked(), nil
}

// UpdateQuantity changes the quantity of the line at index by delta.
// A resulting quantity of zero or less removes the line.
func (c *CartSession) UpdateQuantity(ctx context.Context, index int, delta int64) (*CartView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(c.lines) {
		return nil, notFound("cart line", fmt.Sprint(index))
	}
	line := c.lines[index]

	if delta > 0 && line.Quantity > MaxLineQuantity-delta {
		return nil, invalid("delta", "a line may hold at most %d units", MaxLineQuantity)
	}
	if delta > 0 && !line.Untracked {
		p, err := c.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if err := c.checkStock(p, line.UnitQuantity, delta); err != nil {
			return nil, err
		}
	}

	if line.Quantity+delta <= 0 {
		c.lines = append(c.lines[:index:index], c.lines[index+1:]...)
	} else {
		c.lines[index].Quantity += delta
		c.lines[index].recompute()
	}
	c.touch()
	return c.viewLocked(), nil
}

func (c *CartSession) RemoveItem(index int) (*CartView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(c.lines) {
		return nil, notFound("cart line", fmt.Sprint(index))
	}
	c.lines = append(c.lines[:index:index], c.lines[index+1:]...)
	c.touch()
	return c.viewLocked(), nil
}

// Clear empties the cart and resets customer and payment details.
func (c *CartSession) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.customerName, c.customerPhone = "", ""
	c.payment = PaymentCash
	c.touch()
}

func (c *CartSession) SetCustomer(name, phone string) *CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customerName = strings.TrimSpace(name)
	c.customerPhone = strings.TrimSpace(phone)
	c.touch()
	return c.viewLocked()
}

func (c *CartSession) SetPaymentMethod(m PaymentMethod) (*CartView, error) {
	if !m.IsValid() {
		return nil, invalid("payment_method", "unknown payment method %q", m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payment = m
	c.touch()
	return c.viewLocked(), nil
}

// LoadFromPrescription replaces the cart with the resolved prescription lines and
// takes the patient as customer. Warnings are returned for the caller to surface.
func (c *CartSession) LoadFromPrescription(ctx context.Context, rx *Prescription) (*CartView, *Resolution, error) {
	res, err := c.resolver.Resolve(ctx, rx)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, nil, err
	}
	c.lines = append([]CartLine(nil), res.Lines...)
	c.customerName = rx.PatientName
	c.customerPhone = rx.PatientPhone
	c.touch()
	return c.viewLocked(), res, nil
}

func (c *CartSession) Snapshot() *CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Totals returns the cart subtotal and the cost of the goods in it.
func (c *CartSession) Totals() (subtotal, cost decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cartTotals(c.lines)
}

func (c *CartSession) idleSince() time.Time {
	return time.Unix(0, c.touchedAt.Load())
}

// checkout runs fn with the session locked. On success the session is closed so
// no further edits can land on a cart that has already been sold.
func (c *CartSession) checkout(fn func(v *CartView) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if err := fn(c.viewLocked()); err != nil {
		return err
	}
	c.lines = nil
	c.closed.Store(true)
	return nil
}

func (c *CartSession) usable() error {
	if c.closed.Load() {
		return invalid("cart", "session for %s has been checked out", c.cashierID)
	}
	return nil
}

// checkStock reports whether count more units of unitQty base units each fit in
// the product's stock beside what the cart already reserves for it.
func (c *CartSession) checkStock(p *Product, unitQty, count int64) error {
	if !p.Type.TracksStock() {
		return nil
	}
	var reserved int64
	for _, l := range c.lines {
		if l.ProductID == p.ID {
			reserved = addInt64(reserved, l.BaseQuantity())
		}
	}
	free := p.StockQuantity - reserved
	if free < 0 || count > free/unitQty {
		extra, _ := mulInt64(unitQty, count)
		return &InsufficientStockError{
			ProductID: p.ID,
			Requested: addInt64(reserved, extra),
			Available: p.StockQuantity,
		}
	}
	return nil
}

func (c *CartSession) find(productID string, unitType UnitType) int {
	for i, l := range c.lines {
		if l.ProductID == productID && l.UnitType == unitType {
			return i
		}
	}
	return -1
}

func (c *CartSession) touch() { c.touchedAt.Store(time.Now().UnixNano()) }

func (c *CartSession) viewLocked() *CartView {
	v := &CartView{
		CashierID:     c.cashierID,
		Lines:         append([]CartLine(nil), c.lines...),
		CustomerName:  c.customerName,
		CustomerPhone: c.customerPhone,
		PaymentMethod: c.payment,
		CreatedAt:     c.createdAt,
		TouchedAt:     c.idleSince(),
	}
	v.Subtotal, v.CostTotal = cartTotals(c.lines)
	for _, l := range c.lines {
		v.ItemCount += l.Quantity
	}
	return v
}

func cartTotals(lines []CartLine) (subtotal, cost decimal.Decimal) {
	subtotal, cost = decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
		cost = cost.Add(l.CostBasis.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return subtotal, cost
}
