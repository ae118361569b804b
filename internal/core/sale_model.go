package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is a label only. Credit is the one method that changes behavior.
type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentMobile    PaymentMethod = "mobile"
	PaymentInsurance PaymentMethod = "insurance"
	PaymentCredit    PaymentMethod = "credit"
)

// MaxLineQuantity bounds the unit count of a single cart line.
const MaxLineQuantity int64 = 10000

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile, PaymentInsurance, PaymentCredit:
		return true
	}
	return false
}

// CartLine is one prospective (and, once frozen into a Sale, one sold) line.
// UnitPrice is captured when the line is created and never re-read.
type CartLine struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	UnitType     UnitType        `json:"unit_type"`
	UnitLabel    string          `json:"unit_label"`
	UnitQuantity int64           `json:"unit_quantity"` // base units per unit
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	CostBasis    decimal.Decimal `json:"cost_basis"` // cost of one unit
	Untracked    bool            `json:"untracked,omitempty"`
}

// BaseQuantity is the number of base units the line consumes.
func (l CartLine) BaseQuantity() int64 {
	return l.UnitQuantity * l.Quantity
}

// wellFormed reports whether the line can be frozen into a sale: a positive
// count within MaxLineQuantity whose base quantity fits in an int64.
func (l CartLine) wellFormed() bool {
	if l.Quantity <= 0 || l.Quantity > MaxLineQuantity || l.UnitQuantity <= 0 {
		return false
	}
	_, ok := mulInt64(l.UnitQuantity, l.Quantity)
	return ok
}

// mulInt64 multiplies non-negative a and b. On overflow it returns
// math.MaxInt64 and false.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64, false
	}
	return a * b, true
}

// addInt64 adds non-negative a and b, saturating at math.MaxInt64.
func addInt64(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func (l *CartLine) recompute() {
	l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Sale is immutable once committed. Total = Subtotal - Discount + Tax.
type Sale struct {
	ID            string          `json:"id"`
	Items         []CartLine      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CashierID     string          `json:"cashier_id"`
	CashierName   string          `json:"cashier_name"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	IsCredit      bool            `json:"is_credit"`
	CreditSaleID  string          `json:"credit_sale_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CreditStatus is the settlement state of a CreditSale.
type CreditStatus string

const (
	CreditPending CreditStatus = "pending"
	CreditSettled CreditStatus = "settled"
)

// CreditSale is the deferred-settlement record of a credit Sale.
type CreditSale struct {
	ID            string          `json:"id"`
	SaleID        string          `json:"sale_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Amount        decimal.Decimal `json:"amount"`
	Status        CreditStatus    `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	SettledBy     string          `json:"settled_by,omitempty"`
}

// SaleFilter narrows ListSales. Zero values mean "no filter".
type SaleFilter struct {
	From          time.Time
	To            time.Time
	CashierID     string
	PaymentMethod PaymentMethod
	Limit         int
}

func (f SaleFilter) Matches(s Sale) bool {
	if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.CreatedAt.Before(f.To) {
		return false
	}
	if f.CashierID != "" && s.CashierID != f.CashierID {
		return false
	}
	if f.PaymentMethod != "" && s.PaymentMethod != f.PaymentMethod {
		return false
	}
	return true
}

// CreditFilter narrows ListCreditSales. SettledFrom/SettledTo match on SettledAt.
type CreditFilter struct {
	Status      CreditStatus
	SettledFrom time.Time
	SettledTo   time.Time
}

func (f CreditFilter) Matches(c CreditSale) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if !f.SettledFrom.IsZero() || !f.SettledTo.IsZero() {
		if c.SettledAt == nil {
			return false
		}
		if !f.SettledFrom.IsZero() && c.SettledAt.Before(f.SettledFrom) {
			return false
		}
		if !f.SettledTo.IsZero() && !c.SettledAt.Before(f.SettledTo) {
			return false
		}
	}
	return true
}

// SalesSummary aggregates sales for a period.
// PaidTotal counts non-credit sales made in the period plus credits settled in it.
type SalesSummary struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	Count             int             `json:"count"`
	GrossTotal        decimal.Decimal `json:"gross_total"`
	PaidTotal         decimal.Decimal `json:"paid_total"`
	CreditIssued      decimal.Decimal `json:"credit_issued"`
	CreditSettled     decimal.Decimal `json:"credit_settled"`
	OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
	CostOfGoods       decimal.Decimal `json:"cost_of_goods"`
}
