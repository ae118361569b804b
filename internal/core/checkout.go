package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutRequest carries what the cashier supplies at the till.
// PaymentMethod, when empty, falls back to the one set on the cart.
type CheckoutRequest struct {
	CashierID     string
	CashierName   string
	PaymentMethod PaymentMethod
	Discount      decimal.Decimal
	Tax           decimal.Decimal
}

// CheckoutEngine converts a cart session into an immutable Sale and its stock deduction.
type CheckoutEngine struct {
	repo     Repository
	sessions *SessionManager
	log      *zap.Logger
}

func NewCheckoutEngine(repo Repository, sessions *SessionManager, log *zap.Logger) *CheckoutEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutEngine{repo: repo, sessions: sessions, log: log}
}

// Checkout validates the cashier's cart against authoritative stock and commits the
// sale atomically. On success the cart session is evicted; on any error it is left as it was.
func (e *CheckoutEngine) Checkout(ctx context.Context, req CheckoutRequest) (*Sale, error) {
	sess, ok := e.sessions.Peek(req.CashierID)
	if !ok {
		return nil, ErrEmptyCart
	}

	var sale *Sale
	err := sess.checkout(func(cart *CartView) error {
		s, credit, err := e.validate(ctx, req, cart)
		if err != nil {
			return err
		}
		if err := e.commit(ctx, s, credit); err != nil {
			return err
		}
		sale = s
		return nil
	})
	if err != nil {
		e.log.Warn("checkout rejected", zap.String("cashier_id", req.CashierID), zap.Error(err))
		return nil, err
	}
	e.sessions.evictSession(sess)

	e.log.Info("sale committed",
		zap.String("sale_id", sale.ID),
		zap.String("cashier_id", sale.CashierID),
		zap.String("payment_method", string(sale.PaymentMethod)),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("lines", len(sale.Items)))
	return sale, nil
}

// validate builds the sale for cart or returns why it cannot be sold.
func (e *CheckoutEngine) validate(ctx context.Context, req CheckoutRequest, cart *CartView) (*Sale, *CreditSale, error) {
	if len(cart.Lines) == 0 {
		return nil, nil, ErrEmptyCart
	}

	method := req.PaymentMethod
	if method == "" {
		method = cart.PaymentMethod
	}
	if !method.IsValid() {
		return nil, nil, invalid("payment_method", "unknown payment method %q", method)
	}
	if method == PaymentCredit && (strings.TrimSpace(cart.CustomerName) == "" || strings.TrimSpace(cart.CustomerPhone) == "") {
		return nil, nil, &ValidationError{
			Field:   "customer",
			Message: ErrMissingCustomerForCredit.Error(),
			Cause:   ErrMissingCustomerForCredit,
		}
	}
	if req.Discount.IsNegative() {
		return nil, nil, invalid("discount", "must not be negative")
	}
	if req.Tax.IsNegative() {
		return nil, nil, invalid("tax", "must not be negative")
	}
	if req.Discount.GreaterThan(cart.Subtotal) {
		return nil, nil, invalid("discount", "must not exceed subtotal %s", cart.Subtotal.StringFixed(2))
	}

	// Authoritative re-check: sum base units per product across lines, then compare
	// with stock read now rather than what the cart saw when lines were added.
	required := make(map[string]int64)
	for i, l := range cart.Lines {
		if !l.wellFormed() {
			return nil, nil, invalid("items", "line %d has quantity %d of %d base units", i+1, l.Quantity, l.UnitQuantity)
		}
		if !l.Untracked {
			required[l.ProductID] = addInt64(required[l.ProductID], l.BaseQuantity())
		}
	}
	for _, id := range sortedKeys(required) {
		p, err := e.repo.GetProduct(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if required[id] > p.StockQuantity {
			return nil, nil, &InsufficientStockError{ProductID: id, Requested: required[id], Available: p.StockQuantity}
		}
	}

	now := time.Now().UTC()
	sale := &Sale{
		ID:            uuid.NewString(),
		Items:         append([]CartLine(nil), cart.Lines...),
		Subtotal:      cart.Subtotal,
		Discount:      req.Discount,
		Tax:           req.Tax,
		Total:         cart.Subtotal.Sub(req.Discount).Add(req.Tax),
		PaymentMethod: method,
		CashierID:     req.CashierID,
		CashierName:   req.CashierName,
		CustomerName:  cart.CustomerName,
		CustomerPhone: cart.CustomerPhone,
		IsCredit:      method == PaymentCredit,
		CreatedAt:     now,
	}
	var credit *CreditSale
	if sale.IsCredit {
		credit = &CreditSale{
			ID:            uuid.NewString(),
			SaleID:        sale.ID,
			CustomerName:  sale.CustomerName,
			CustomerPhone: sale.CustomerPhone,
			Amount:        sale.Total,
			Status:        CreditPending,
			CreatedAt:     now,
		}
		sale.CreditSaleID = credit.ID
	}
	return sale, credit, nil
}

func (e *CheckoutEngine) commit(ctx context.Context, sale *Sale, credit *CreditSale) error {
	var reqs []MovementRequest
	for _, l := range sale.Items {
		if l.Untracked {
			continue
		}
		reqs = append(reqs, MovementRequest{
			ProductID: l.ProductID,
			Delta:     -l.BaseQuantity(),
			Kind:      MovementSale,
			Reason:    fmt.Sprintf("sale of %d %s", l.Quantity, l.UnitLabel),
			Reference: sale.ID,
			Actor:     sale.CashierID,
		})
	}

	if _, err := e.repo.CommitSale(ctx, sale, credit, reqs); err != nil {
		// Validation passed, so a shortfall here means another checkout won the race.
		var short *InsufficientStockError
		if errors.As(err, &short) {
			return &ConcurrentStockConflictError{ProductID: short.ProductID, Available: short.Available}
		}
		return fmt.Errorf("failed to commit sale: %w", err)
	}
	return nil
}

// SettleCredit records the settlement of a pending credit sale.
func (e *CheckoutEngine) SettleCredit(ctx context.Context, creditID, actor string) (*CreditSale, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, invalid("actor", "is required")
	}
	c, err := e.repo.SettleCreditSale(ctx, creditID, actor, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	e.log.Info("credit settled",
		zap.String("credit_id", c.ID),
		zap.String("sale_id", c.SaleID),
		zap.String("amount", c.Amount.StringFixed(2)),
		zap.String("actor", actor))
	return c, nil
}

// SalesSummary aggregates sales created in [from, to). Credit sales count toward
// GrossTotal but only reach PaidTotal through a settlement inside the period.
func (e *CheckoutEngine) SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	sales, err := e.repo.ListSales(ctx, SaleFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	settled, err := e.repo.ListCreditSales(ctx, CreditFilter{Status: CreditSettled, SettledFrom: from, SettledTo: to})
	if err != nil {
		return nil, fmt.Errorf("failed to list settled credits: %w", err)
	}
	pending, err := e.repo.ListCreditSales(ctx, CreditFilter{Status: CreditPending})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending credits: %w", err)
	}

	sum := &SalesSummary{
		From:              from,
		To:                to,
		GrossTotal:        decimal.Zero,
		PaidTotal:         decimal.Zero,
		CreditIssued:      decimal.Zero,
		CreditSettled:     decimal.Zero,
		OutstandingCredit: decimal.Zero,
		CostOfGoods:       decimal.Zero,
	}
	for _, s := range sales {
		sum.Count++
		sum.GrossTotal = sum.GrossTotal.Add(s.Total)
		if s.IsCredit {
			sum.CreditIssued = sum.CreditIssued.Add(s.Total)
		} else {
			sum.PaidTotal = sum.PaidTotal.Add(s.Total)
		}
		_, cost := cartTotals(s.Items)
		sum.CostOfGoods = sum.CostOfGoods.Add(cost)
	}
	for _, c := range settled {
		sum.CreditSettled = sum.CreditSettled.Add(c.Amount)
	}
	sum.PaidTotal = sum.PaidTotal.Add(sum.CreditSettled)
	for _, c := range pending {
		sum.OutstandingCredit = sum.OutstandingCredit.Add(c.Amount)
	}
	return sum, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
