package services_test

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger { return zap.NewNop() }

// --- Coupon repository ---

type mockCouponRepo struct {
	mu         sync.Mutex
	coupons    map[string]*models.Coupon
	increments int
}

func newMockCouponRepo(coupons ...*models.Coupon) *mockCouponRepo {
	m := &mockCouponRepo{coupons: make(map[string]*models.Coupon)}
	for _, c := range coupons {
		m.coupons[c.Code] = c
	}
	return m
}

func (m *mockCouponRepo) Create(_ context.Context, c *models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.coupons[c.Code] = c
	return nil
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

// IncrementUsage mirrors the conditional UPDATE: the limit check and the
// increment happen under one lock.
func (m *mockCouponRepo) IncrementUsage(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments++
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok || !c.Active {
		return repository.ErrCouponNotFound
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return repository.ErrCouponLimitReached
	}
	c.UsageCount++
	return nil
}

func (m *mockCouponRepo) Deactivate(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return repository.ErrCouponNotFound
	}
	c.Active = false
	return nil
}

func (m *mockCouponRepo) FindAll(_ context.Context, _, _ int) ([]models.Coupon, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Coupon
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, int64(len(out)), nil
}

// --- Order repository ---

// memOrderRepo applies the same conditions as the SQL updates.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	err    error
}

func newMemOrderRepo(orders ...*models.Order) *memOrderRepo {
	m := &memOrderRepo{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		m.orders[o.OrderNumber] = o
	}
	return m
}

func (m *memOrderRepo) get(orderNumber string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[orderNumber]
}

func (m *memOrderRepo) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders[o.OrderNumber] = o
	return nil
}

func (m *memOrderRepo) find(pred func(*models.Order) bool) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if pred(o) {
			cp := *o
			cp.StatusHistory = append(cp.StatusHistory[:0:0], o.StatusHistory...)
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memOrderRepo) FindByOrderNumber(_ context.Context, n string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.OrderNumber == n })
}

func (m *memOrderRepo) FindByTransactionID(_ context.Context, id string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.TransactionID == id })
}

func (m *memOrderRepo) FindByMerchantTransactionID(_ context.Context, id string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.MerchantTransactionID == id })
}

func (m *memOrderRepo) ApplyPaymentSuccess(_ context.Context, mtid string, paidAt time.Time, change models.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	changed := false
	for _, o := range m.orders {
		if o.MerchantTransactionID != mtid {
			continue
		}
		if o.Status != models.OrderStatusPending && o.Status != models.OrderStatusConfirmed {
			continue
		}
		if o.PaymentStatus == models.PaymentStatusCompleted || o.PaymentStatus == models.PaymentStatusRefunded {
			continue
		}
		o.PaymentStatus = models.PaymentStatusCompleted
		o.PaidAt = &paidAt
		o.Status = models.OrderStatusConfirmed
		o.NeedsReconciliation = false
		o.ReconciliationReason = ""
		o.StatusHistory = append(o.StatusHistory, change)
		changed = true
	}
	return changed, nil
}

func (m *memOrderRepo) ApplyPaymentFailure(_ context.Context, mtid string, change models.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	changed := false
	for _, o := range m.orders {
		if o.MerchantTransactionID != mtid {
			continue
		}
		if o.PaymentStatus != models.PaymentStatusPending && o.PaymentStatus != models.PaymentStatusAuthorized {
			continue
		}
		o.PaymentStatus = models.PaymentStatusFailed
		o.StatusHistory = append(o.StatusHistory, change)
		changed = true
	}
	return changed, nil
}

func (m *memOrderRepo) MarkCaptured(_ context.Context, n string, paidAt time.Time, change models.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[n]
	if !ok || o.PaymentStatus != models.PaymentStatusAuthorized {
		return false, nil
	}
	o.PaymentStatus = models.PaymentStatusCompleted
	o.PaidAt = &paidAt
	o.NeedsReconciliation = false
	o.ReconciliationReason = ""
	o.StatusHistory = append(o.StatusHistory, change)
	return true, nil
}

func (m *memOrderRepo) FlagReconciliation(_ context.Context, n, reason string, change models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[n]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.NeedsReconciliation = true
	o.ReconciliationReason = reason
	o.StatusHistory = append(o.StatusHistory, change)
	return nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, n string, from, to models.OrderStatus, change models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[n]
	if !ok || o.Status != from {
		return repository.ErrStatusConflict
	}
	o.Status = to
	o.StatusHistory = append(o.StatusHistory, change)
	return nil
}

func (m *memOrderRepo) AppendHistory(_ context.Context, n string, change models.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[n]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.StatusHistory = append(o.StatusHistory, change)
	return nil
}

func (m *memOrderRepo) List(_ context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if f.NeedsReconciliation != nil && o.NeedsReconciliation != *f.NeedsReconciliation {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

// --- Gateway ---

type mockGateway struct {
	mu        sync.Mutex
	tx        *models.GatewayTransaction
	fetchErr  error
	captureFn func(paymentID string, amount int64) (*models.GatewayTransaction, error)
	event     *models.WebhookEvent
	parseErr  error
	captures  int
	refunds   int
}

func (g *mockGateway) Name() string  { return "mock" }
func (g *mockGateway) KeyID() string { return "key_mock" }

func (g *mockGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*models.GatewayOrder, error) {
	return &models.GatewayOrder{ID: "order_" + receipt, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (g *mockGateway) VerifySignature(string, string, string) bool { return true }

func (g *mockGateway) FetchPayment(context.Context, string) (*models.GatewayTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	cp := *g.tx
	return &cp, nil
}

func (g *mockGateway) Capture(_ context.Context, paymentID string, amount int64, _ string) (*models.GatewayTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captures++
	if g.captureFn != nil {
		return g.captureFn(paymentID, amount)
	}
	g.tx.Status = models.GatewayStatusCaptured
	cp := *g.tx
	return &cp, nil
}

func (g *mockGateway) Refund(_ context.Context, paymentID string, _ *int64) (*models.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return &models.RefundResult{RefundID: "rfnd_1", PaymentID: paymentID}, nil
}

func (g *mockGateway) ParseWebhook([]byte, http.Header) (*models.WebhookEvent, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	cp := *g.event
	return &cp, nil
}

// --- Settings repository ---

type mockSettingsRepo struct {
	settings *models.StoreSettings
	err      error
	gets     int
	saves    int
}

func (m *mockSettingsRepo) Get(context.Context) (*models.StoreSettings, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	cp := *m.settings
	return &cp, nil
}

func (m *mockSettingsRepo) Save(_ context.Context, s *models.StoreSettings) error {
	m.saves++
	if m.err != nil {
		return m.err
	}
	s.ID = 1
	cp := *s
	m.settings = &cp
	return nil
}
