package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmacy-pos/internal/core"
)

type appService struct {
	repo     core.Repository
	catalog  core.CatalogService
	ledger   core.StockLedger
	resolver *core.PrescriptionResolver
	sessions *core.SessionManager
	checkout *core.CheckoutEngine
	audit    *core.AuditEngine
	log      *zap.Logger
}

// NewAppService wires the domain services over repo and returns the facade.
// sessionTTL is how long an idle cart survives a sweep; zero keeps carts forever.
func NewAppService(repo core.Repository, sessionTTL time.Duration, log *zap.Logger) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	ledger := core.NewStockLedger(repo, log.Named("ledger"))
	resolver := core.NewPrescriptionResolver(repo, log.Named("prescription"))
	sessions := core.NewSessionManager(repo, resolver, sessionTTL, log.Named("session"))
	return &appService{
		repo:     repo,
		catalog:  core.NewCatalogService(repo, ledger, log.Named("catalog")),
		ledger:   ledger,
		resolver: resolver,
		sessions: sessions,
		checkout: core.NewCheckoutEngine(repo, sessions, log.Named("checkout")),
		audit:    core.NewAuditEngine(repo, log.Named("audit")),
		log:      log,
	}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	return s.catalog.GetProduct(ctx, id)
}

func (s *appService) ListProducts(ctx context.Context, q ProductQuery) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, core.ProductFilter{
		Query:        q.Query,
		Category:     q.Category,
		ActiveOnly:   q.ActiveOnly,
		LowStockOnly: q.LowStockOnly,
	})
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) SaveProduct(ctx context.Context, req SaveProductRequest) (*core.Product, error) {
	return s.catalog.SaveProduct(ctx, core.Product{
		ID:           req.ID,
		Name:         strings.TrimSpace(req.Name),
		Category:     strings.TrimSpace(req.Category),
		Type:         req.Type,
		Units:        req.Units,
		ReorderLevel: req.ReorderLevel,
		CostPrice:    req.CostPrice,
		IsActive:     req.IsActive,
	}, req.OpeningStock, req.Actor)
}

func (s *appService) RecalculatePrices(ctx context.Context, productID string, reference core.UnitType) (*core.Product, error) {
	return s.catalog.RecalculatePrices(ctx, productID, reference)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) RecordStockMovement(ctx context.Context, req RecordMovementRequest) (*MovementResult, error) {
	// Sales only happen through checkout.
	if req.Kind == core.MovementSale {
		return nil, &core.ValidationError{Field: "kind", Message: "sale movements are recorded by checkout"}
	}

	var (
		m   *core.StockMovement
		err error
	)
	if req.SetTo != nil {
		if req.Kind != "" && req.Kind != core.MovementCorrection {
			return nil, &core.ValidationError{Field: "kind", Message: "only corrections may set an absolute quantity"}
		}
		m, err = s.ledger.Correct(ctx, req.ProductID, *req.SetTo, req.Reason, req.Actor)
	} else {
		m, err = s.ledger.ApplyMovement(ctx, core.MovementRequest{
			ProductID: req.ProductID,
			Delta:     req.Delta,
			Kind:      req.Kind,
			Reason:    req.Reason,
			Reference: req.Reference,
			Actor:     req.Actor,
		})
	}
	if err != nil {
		return nil, err
	}

	p, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	return &MovementResult{Movement: m, Product: p}, nil
}

func (s *appService) ListMovements(ctx context.Context, filter core.MovementFilter) (*MovementListResult, error) {
	moves, err := s.ledger.History(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: moves}, nil
}

// VerifyStock runs Reconcile for every product, services included, since a
// service with any movement is itself a mismatch.
func (s *appService) VerifyStock(ctx context.Context) (*VerifyResult, error) {
	products, err := s.catalog.ListProducts(ctx, core.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	res := &VerifyResult{}
	for _, p := range products {
		r, err := s.ledger.Reconcile(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		res.Checked++
		if !r.Consistent() {
			res.Mismatches = append(res.Mismatches, *r)
		}
	}
	return res, nil
}

// ── Cart ──────────────────────────────────────────────────────────────────────

// Cart, UpdateCartLine, RemoveCartLine and ClearCart never create a session;
// only adding an item or setting the customer does.
func (s *appService) Cart(_ context.Context, cashierID string) *core.CartView {
	sess, ok := s.sessions.Peek(cashierID)
	if !ok {
		return core.EmptyCartView(cashierID)
	}
	return sess.Snapshot()
}

func (s *appService) AddToCart(ctx context.Context, cashierID, productID string, unit core.UnitType) (*core.CartView, error) {
	return s.sessions.Session(cashierID).AddItem(ctx, productID, unit)
}

func (s *appService) UpdateCartLine(ctx context.Context, cashierID string, index int, delta int64) (*core.CartView, error) {
	sess, ok := s.sessions.Peek(cashierID)
	if !ok {
		return nil, fmt.Errorf("cart line %d: %w", index, core.ErrNotFound)
	}
	return sess.UpdateQuantity(ctx, index, delta)
}

func (s *appService) RemoveCartLine(_ context.Context, cashierID string, index int) (*core.CartView, error) {
	sess, ok := s.sessions.Peek(cashierID)
	if !ok {
		return nil, fmt.Errorf("cart line %d: %w", index, core.ErrNotFound)
	}
	return sess.RemoveItem(index)
}

// ClearCart destroys the cashier's session.
func (s *appService) ClearCart(_ context.Context, cashierID string) *core.CartView {
	if sess, ok := s.sessions.Peek(cashierID); ok {
		sess.Clear()
		s.sessions.Evict(cashierID)
	}
	return core.EmptyCartView(cashierID)
}

func (s *appService) SetCartCustomer(_ context.Context, req CartCustomerRequest) (*core.CartView, error) {
	sess := s.sessions.Session(req.CashierID)
	if req.PaymentMethod != "" {
		if _, err := sess.SetPaymentMethod(req.PaymentMethod); err != nil {
			return nil, err
		}
	}
	return sess.SetCustomer(req.CustomerName, req.CustomerPhone), nil
}

func (s *appService) SweepSessions(now time.Time) int {
	return s.sessions.Sweep(now)
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (s *appService) Checkout(ctx context.Context, req CheckoutRequest) (*core.Sale, error) {
	return s.checkout.Checkout(ctx, core.CheckoutRequest{
		CashierID:     req.CashierID,
		CashierName:   req.CashierName,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		Tax:           req.Tax,
	})
}

func (s *appService) GetSale(ctx context.Context, id string) (*core.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *appService) ListSales(ctx context.Context, filter core.SaleFilter) (*SaleListResult, error) {
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return &SaleListResult{Sales: sales}, nil
}

func (s *appService) SalesSummary(ctx context.Context, from, to time.Time) (*core.SalesSummary, error) {
	return s.checkout.SalesSummary(ctx, from, to)
}

func (s *appService) SettleCredit(ctx context.Context, creditID, actor string) (*core.CreditSale, error) {
	return s.checkout.SettleCredit(ctx, creditID, actor)
}

func (s *appService) ListCredits(ctx context.Context, filter core.CreditFilter) (*CreditListResult, error) {
	credits, err := s.repo.ListCreditSales(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit sales: %w", err)
	}
	return &CreditListResult{Credits: credits}, nil
}

// ── Prescriptions ─────────────────────────────────────────────────────────────

func (s *appService) SavePrescription(ctx context.Context, req SavePrescriptionRequest) (*core.Prescription, error) {
	if strings.TrimSpace(req.PatientName) == "" {
		return nil, &core.ValidationError{Field: "patient_name", Message: "is required"}
	}
	if len(req.Items) == 0 {
		return nil, &core.ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Medicine) == "" {
			return nil, &core.ValidationError{Field: "items", Message: fmt.Sprintf("item %d has no medicine", i+1)}
		}
	}

	rx := &core.Prescription{
		ID:           uuid.NewString(),
		PatientName:  strings.TrimSpace(req.PatientName),
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		Prescriber:   strings.TrimSpace(req.Prescriber),
		Items:        req.Items,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.SavePrescription(ctx, rx); err != nil {
		return nil, fmt.Errorf("failed to save prescription: %w", err)
	}
	s.log.Info("prescription saved", zap.String("prescription_id", rx.ID), zap.Int("items", len(rx.Items)))
	return rx, nil
}

func (s *appService) ResolvePrescription(ctx context.Context, id string) (*core.Resolution, error) {
	return s.resolver.ResolveByID(ctx, id)
}

func (s *appService) LoadPrescriptionIntoCart(ctx context.Context, cashierID, prescriptionID string) (*PrescriptionCartResult, error) {
	rx, err := s.repo.GetPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	view, res, err := s.sessions.Session(cashierID).LoadFromPrescription(ctx, rx)
	if err != nil {
		return nil, err
	}
	return &PrescriptionCartResult{Cart: view, Resolution: res}, nil
}

// ── Audit ─────────────────────────────────────────────────────────────────────

func (s *appService) GetAuditReport(ctx context.Context, req core.AuditRequest) (*core.AuditSummary, error) {
	return s.audit.Report(ctx, req)
}
