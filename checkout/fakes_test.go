package checkout

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// --- gateway ---

type fakeGateway struct {
	mu         sync.Mutex
	validSig   bool
	tx         *models.GatewayTransaction
	fetchErr   error
	captureErr error
	refundErr  error
	createErr  error
	calls      []string
	refundIDs  []string
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) Name() string  { return "fake" }
func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*models.GatewayOrder, error) {
	g.record("create")
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &models.GatewayOrder{ID: "order_new", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	g.record("verify")
	return g.validSig
}

func (g *fakeGateway) FetchPayment(context.Context, string) (*models.GatewayTransaction, error) {
	g.record("fetch")
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	cp := *g.tx
	return &cp, nil
}

func (g *fakeGateway) Capture(_ context.Context, paymentID string, amount int64, currency string) (*models.GatewayTransaction, error) {
	g.record("capture")
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	cp := *g.tx
	cp.Status = models.GatewayStatusCaptured
	return &cp, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amount *int64) (*models.RefundResult, error) {
	g.record("refund")
	g.mu.Lock()
	g.refundIDs = append(g.refundIDs, paymentID)
	g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &models.RefundResult{RefundID: "rfnd_1", PaymentID: paymentID}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, http.Header) (*models.WebhookEvent, error) {
	return nil, nil
}

// --- order store ---

type fakeOrders struct {
	mu          sync.Mutex
	createErrs  []error
	created     []*models.Order
	numbers     []string
	existing    map[string]*models.Order
	dupOnCreate *models.Order
	storeErr    error // stores the row, then fails as if the reply was lost
	findErr     error
	checkCtx    bool
	markErr     error
	flagErr     error
	flagged     []string
	marked      int
	calls       int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{existing: make(map[string]*models.Order)}
}

func (f *fakeOrders) Create(ctx context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.numbers = append(f.numbers, o.OrderNumber)
	if f.checkCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if f.dupOnCreate != nil {
		f.existing[f.dupOnCreate.TransactionID] = f.dupOnCreate
		return repository.ErrDuplicatePayment
	}
	if f.storeErr != nil {
		f.existing[o.TransactionID] = o
		f.created = append(f.created, o)
		return f.storeErr
	}
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	f.created = append(f.created, o)
	return nil
}

func (f *fakeOrders) FindByOrderNumber(context.Context, string) (*models.Order, error) {
	return nil, repository.ErrOrderNotFound
}

func (f *fakeOrders) FindByTransactionID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	if o, ok := f.existing[id]; ok {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (f *fakeOrders) FindByMerchantTransactionID(context.Context, string) (*models.Order, error) {
	return nil, repository.ErrOrderNotFound
}

func (f *fakeOrders) ApplyPaymentSuccess(context.Context, string, time.Time, models.StatusChange) (bool, error) {
	return false, nil
}

func (f *fakeOrders) ApplyPaymentFailure(context.Context, string, models.StatusChange) (bool, error) {
	return false, nil
}

func (f *fakeOrders) MarkCaptured(context.Context, string, time.Time, models.StatusChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.markErr != nil {
		return false, f.markErr
	}
	f.marked++
	return true, nil
}

func (f *fakeOrders) FlagReconciliation(_ context.Context, _ string, reason string, _ models.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.flagged = append(f.flagged, reason)
	return f.flagErr
}

func (f *fakeOrders) UpdateStatus(context.Context, string, models.OrderStatus, models.OrderStatus, models.StatusChange) error {
	return nil
}

func (f *fakeOrders) AppendHistory(context.Context, string, models.StatusChange) error { return nil }

func (f *fakeOrders) List(context.Context, models.OrderFilter) ([]models.Order, int64, error) {
	return nil, 0, nil
}

// --- collaborators ---

type fakePricer struct {
	pricing *models.Pricing
	err     error
	calls   int
}

func (p *fakePricer) Quote(context.Context, []models.CartItem, string) (*models.Pricing, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	cp := *p.pricing
	return &cp, nil
}

type fakeCoupons struct {
	mu       sync.Mutex
	redeemed []string
	err      error
}

func (c *fakeCoupons) RedeemCoupon(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redeemed = append(c.redeemed, code)
	return c.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []models.Order
}

func (n *fakeNotifier) OrderConfirmed(o models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []models.ReconciliationTask
}

func (q *fakeQueue) Enqueue(_ context.Context, t models.ReconciliationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *fakeQueue) reasons() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, t := range q.tasks {
		out = append(out, t.Reason)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *fakePublisher) Publish(_ context.Context, e models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// --- harness ---

type harness struct {
	gw       *fakeGateway
	orders   *fakeOrders
	pricer   *fakePricer
	coupons  *fakeCoupons
	notifier *fakeNotifier
	queue    *fakeQueue
	pub      *fakePublisher
	o        *Orchestrator
}

func newHarness(status models.GatewayStatus) *harness {
	h := &harness{
		gw: &fakeGateway{
			validSig: true,
			tx: &models.GatewayTransaction{
				GatewayOrderID:   "order_1",
				GatewayPaymentID: "pay_1",
				Status:           status,
				AmountPaise:      99900,
				Currency:         "INR",
				Method:           "upi",
			},
		},
		orders: newFakeOrders(),
		pricer: &fakePricer{pricing: &models.Pricing{
			Subtotal:   109900,
			Discount:   10000,
			Shipping:   0,
			Total:      99900,
			Currency:   "INR",
			CouponCode: "WELCOME10",
		}},
		coupons:  &fakeCoupons{},
		notifier: &fakeNotifier{},
		queue:    &fakeQueue{},
		pub:      &fakePublisher{},
	}
	h.o = New(Deps{
		Gateway:   h.gw,
		Orders:    h.orders,
		Pricing:   h.pricer,
		Coupons:   h.coupons,
		Notifier:  h.notifier,
		Publisher: h.pub,
		Queue:     h.queue,
		Clock:     testclock.NewClock(testNow),
		Logger:    zap.NewNop(),
	})
	return h
}

func validRequest() *models.CompleteCheckoutRequest {
	return &models.CompleteCheckoutRequest{
		AuthProof: models.AuthProof{
			GatewayOrderID: "order_1",
			PaymentID:      "pay_1",
			Signature:      "sig",
		},
		Order: models.OrderData{
			Customer: models.Customer{Name: "Asha Rao", Email: "asha@example.com", Phone: "+919800000000"},
			ShippingAddress: models.Address{
				Line1:      "12 MG Road",
				City:       "Bengaluru",
				PostalCode: "560001",
			},
			Items: []models.CartItem{
				{Kind: models.LineItemCatalog, ProductID: uuid.NewString(), Name: "Amber Noir", UnitPrice: 50000, Quantity: 2},
				{Kind: models.LineItemCustom, Name: "Custom lavender jar", Description: "Lavender, 200g", UnitPrice: 9900, Quantity: 1},
			},
			CouponCode:    "WELCOME10",
			DeclaredTotal: 99900,
		},
	}
}
