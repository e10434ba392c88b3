// Package checkout turns a gateway-authorized payment into a durable order.
//
// The order is always written before money is captured. A capture problem
// after the write leaves a confirmed order with an authorized payment for an
// admin to settle; a write failure after the gateway already captured is
// compensated with a refund.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/common/logger"
	"github.com/anisha-singhal/Lumera-sub000/events"
	"github.com/anisha-singhal/Lumera-sub000/gateway"
	"github.com/anisha-singhal/Lumera-sub000/metrics"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/reconcile"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

const maxOrderNumberAttempts = 3

// storeTimeout bounds order writes and lookups made after the customer paid.
const storeTimeout = 15 * time.Second

// Outcome labels for the checkout_outcomes_total metric.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeCaptureDeferred = "capture_deferred"
	OutcomeReplayed        = "replayed"
)

// Pricer computes the server-side price of a cart.
type Pricer interface {
	Quote(ctx context.Context, items []models.CartItem, couponCode string) (*models.Pricing, error)
}

// CouponRedeemer consumes one use of a coupon.
type CouponRedeemer interface {
	RedeemCoupon(ctx context.Context, code string) error
}

// Notifier tells the buyer about their order. It must not block.
type Notifier interface {
	OrderConfirmed(order models.Order)
}

type Deps struct {
	Gateway   gateway.Gateway
	Orders    repository.OrderRepository
	Pricing   Pricer
	Coupons   CouponRedeemer
	Notifier  Notifier
	Publisher events.Publisher
	Queue     reconcile.Queue
	Metrics   *metrics.Recorder
	Clock     clock.Clock
	Logger    *zap.Logger
}

type Orchestrator struct {
	gateway   gateway.Gateway
	orders    repository.OrderRepository
	pricing   Pricer
	coupons   CouponRedeemer
	notifier  Notifier
	publisher events.Publisher
	queue     reconcile.Queue
	metrics   *metrics.Recorder
	clock     clock.Clock
	numbers   *NumberGenerator
	logger    *zap.Logger

	steps map[State]step
	bg    sync.WaitGroup
}

type step func(ctx context.Context, a *attempt) State

func New(d Deps) *Orchestrator {
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Queue == nil {
		d.Queue = reconcile.NewLogQueue(d.Logger)
	}
	if d.Publisher == nil {
		d.Publisher = events.NewLogPublisher(d.Logger)
	}
	o := &Orchestrator{
		gateway:   d.Gateway,
		orders:    d.Orders,
		pricing:   d.Pricing,
		coupons:   d.Coupons,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		queue:     d.Queue,
		metrics:   d.Metrics,
		clock:     d.Clock,
		numbers:   NewNumberGenerator(d.Clock),
		logger:    d.Logger,
	}
	o.steps = map[State]step{
		StateStart:                o.start,
		StateSignatureInvalid:     o.signatureInvalid,
		StateSignatureVerified:    o.verifyAmount,
		StateAmountRejected:       o.amountRejected,
		StateAmountVerified:       o.persist,
		StateOrderPersisted:       o.capture,
		StatePaymentCaptured:      o.captured,
		StateCapturePendingManual: o.capturePending,
		StatePersistFailed:        o.persistFailed,
		StateRefundAttempted:      o.refund,
		StateRefundSkipped:        o.refundSkipped,
	}
	return o
}

// attempt is the working state of one checkout.
type attempt struct {
	req   *models.CompleteCheckoutRequest
	state State
	trail []State
	log   *zap.Logger

	items          []models.OrderItem
	tx             *models.GatewayTransaction
	amountVerified bool
	pricing        *models.Pricing
	flagReason     string
	rejection      *Error

	order           *models.Order
	persistErr      error
	persistUnknown  bool
	captureDeferred bool
	replayed        bool
	refundInitiated bool

	err *Error
}

// Complete runs one checkout attempt to a terminal state.
func (o *Orchestrator) Complete(ctx context.Context, req *models.CompleteCheckoutRequest) (*models.OrderConfirmation, *Error) {
	a := &attempt{
		req:   req,
		state: StateStart,
		log: logger.FromContext(ctx, o.logger).With(
			zap.String("gateway", o.gateway.Name()),
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("payment_id", req.PaymentID),
		),
	}
	o.run(ctx, a)

	if a.state == StateFailed {
		o.metrics.CheckoutOutcome(string(a.err.Kind))
		a.log.Warn("Checkout failed",
			zap.String("kind", string(a.err.Kind)),
			zap.Bool("payment_captured", a.err.PaymentCaptured),
			zap.Bool("refund_initiated", a.err.RefundInitiated),
			zap.Strings("trail", trailStrings(a.trail)),
			zap.Error(a.err.Err),
		)
		return nil, a.err
	}

	o.finish(ctx, a)
	return confirmation(a), nil
}

// run drives the attempt through the step table until it reaches DONE or
// FAILED. An illegal transition is a programming error and fails the attempt
// without further side effects.
func (o *Orchestrator) run(ctx context.Context, a *attempt) {
	a.trail = append(a.trail, a.state)
	for !a.state.Terminal() {
		next := o.steps[a.state](ctx, a)
		if !canMove(a.state, next) {
			a.log.Error("Illegal checkout transition", zap.String("from", string(a.state)), zap.String("to", string(next)))
			if a.err == nil {
				a.err = contactSupport(KindOrderPersistFailed, false, false, fmt.Errorf("illegal transition %s -> %s", a.state, next))
			}
			next = StateFailed
		}
		a.log.Debug("Checkout transition", zap.String("from", string(a.state)), zap.String("to", string(next)))
		a.state = next
		a.trail = append(a.trail, next)
	}
}

// start validates the request shape and checks the gateway signature. Nothing
// outside this process is touched.
func (o *Orchestrator) start(_ context.Context, a *attempt) State {
	items, err := MapItems(a.req.Order.Items)
	if err != nil {
		a.err = notCharged(KindInvalidRequest, err)
		return StateFailed
	}
	a.items = items

	if !o.gateway.VerifySignature(a.req.GatewayOrderID, a.req.PaymentID, a.req.Signature) {
		return StateSignatureInvalid
	}
	return StateSignatureVerified
}

func (o *Orchestrator) signatureInvalid(_ context.Context, a *attempt) State {
	a.err = notCharged(KindInvalidSignature, errors.New("payment signature mismatch"))
	return StateFailed
}

// verifyAmount asks the gateway what was actually paid and compares it with
// the server-side price.
func (o *Orchestrator) verifyAmount(ctx context.Context, a *attempt) State {
	// A resubmitted checkout is answered from the stored order. Re-pricing it
	// could disagree (the coupon may be used up by now) and must never lead
	// to refunding a completed sale.
	existing, err := o.orders.FindByTransactionID(ctx, a.req.PaymentID)
	switch {
	case err == nil:
		a.order = existing
		a.replayed = true
		return StateAmountVerified
	case !errors.Is(err, repository.ErrOrderNotFound):
		a.log.Warn("Replay lookup failed, relying on the unique index", zap.Error(err))
	}

	tx, err := o.gateway.FetchPayment(ctx, a.req.PaymentID)
	if err != nil {
		a.log.Warn("Could not fetch payment from gateway, amount unverified", zap.Error(err))
		tx = &models.GatewayTransaction{
			GatewayOrderID:   a.req.GatewayOrderID,
			GatewayPaymentID: a.req.PaymentID,
			Status:           models.GatewayStatusUnknown,
			AmountPaise:      a.req.Order.DeclaredTotal,
			Currency:         strings.ToUpper(a.req.Order.Currency),
		}
		a.flagReason = reconcile.ReasonAmountUnverified
	} else {
		a.amountVerified = true
	}
	a.tx = tx

	if a.amountVerified {
		if tx.GatewayOrderID != "" && tx.GatewayOrderID != a.req.GatewayOrderID {
			a.rejection = notCharged(KindPaymentNotAuthorized,
				fmt.Errorf("payment belongs to gateway order %s", tx.GatewayOrderID))
			return StateAmountRejected
		}
		switch tx.Status {
		case models.GatewayStatusAuthorized, models.GatewayStatusCaptured:
		default:
			a.rejection = notCharged(KindPaymentNotAuthorized, fmt.Errorf("gateway reports payment %s", tx.Status))
			return StateAmountRejected
		}
	}

	pricing, err := o.pricing.Quote(ctx, a.req.Order.Items, a.req.Order.CouponCode)
	if err != nil {
		a.log.Error("Pricing unavailable, taking the gateway amount", zap.Error(err))
		if a.flagReason == "" {
			a.flagReason = reconcile.ReasonPricingUnavailable
		}
		var subtotal int64
		for _, it := range a.items {
			subtotal += it.LineTotal
		}
		a.pricing = &models.Pricing{Subtotal: subtotal, Total: tx.AmountPaise, Currency: tx.Currency}
		return StateAmountVerified
	}
	a.pricing = pricing

	if tx.AmountPaise != pricing.Total {
		a.rejection = &Error{
			Kind: KindAmountMismatch,
			Err: fmt.Errorf("paid %d (verified=%t) but order prices at %d",
				tx.AmountPaise, a.amountVerified, pricing.Total),
		}
		return StateAmountRejected
	}
	if tx.Currency != "" && pricing.Currency != "" && !strings.EqualFold(tx.Currency, pricing.Currency) {
		a.rejection = &Error{Kind: KindAmountMismatch, Err: fmt.Errorf("paid in %s but store sells in %s", tx.Currency, pricing.Currency)}
		return StateAmountRejected
	}
	return StateAmountVerified
}

// amountRejected ends an attempt the store never saw. Money the gateway
// already captured for a mismatched amount is returned; a payment that
// belongs to another gateway order is left alone.
func (o *Orchestrator) amountRejected(ctx context.Context, a *attempt) State {
	a.err = a.rejection
	switch {
	case a.err.Kind == KindAmountMismatch && a.tx.Status == models.GatewayStatusCaptured:
		refunded := o.issueRefund(ctx, a, reconcile.ReasonRefundFailed)
		a.err.PaymentCaptured = true
		a.err.RefundInitiated = refunded
		a.err.Retryable = false
		a.err.Message = MessageContactSupport
	case a.tx.Status == models.GatewayStatusUnknown:
		a.err.Retryable = false
		a.err.Message = MessageContactSupport
	default:
		if a.err.Message == "" {
			a.err.Message = MessageNotCharged
			a.err.Retryable = true
		}
	}
	return StateFailed
}

// persist writes the order before any capture.
func (o *Orchestrator) persist(ctx context.Context, a *attempt) State {
	if a.replayed {
		a.log.Info("Checkout already completed for this payment", zap.String("order_number", a.order.OrderNumber))
		return StateDone
	}
	order := o.buildOrder(a)

	// The payment is already taken, so a client disconnect must not abort the write.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	var err error
	for i := 0; i < maxOrderNumberAttempts; i++ {
		order.OrderNumber, err = o.numbers.Next()
		if err != nil {
			break
		}
		err = o.orders.Create(wctx, order)
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
		a.log.Warn("Order number collision, regenerating", zap.String("order_number", order.OrderNumber))
	}

	switch {
	case err == nil:
		a.order = order
		a.log = a.log.With(zap.String("order_number", order.OrderNumber))
		return StateOrderPersisted
	case errors.Is(err, repository.ErrDuplicatePayment):
		existing, findErr := o.lookupOrder(ctx, a.req.PaymentID)
		if findErr != nil {
			// The order exists, so nothing may be refunded; a retry will find it.
			a.err = &Error{Kind: KindOrderPersistFailed, Message: MessageContactSupport, Err: findErr}
			return StateFailed
		}
		a.log.Info("Checkout already completed for this payment", zap.String("order_number", existing.OrderNumber))
		a.order = existing
		a.replayed = true
		return StateDone
	default:
		return o.confirmWrite(ctx, a, order, err)
	}
}

// confirmWrite decides what a failed create really did. A timeout or a
// dropped connection can hide an INSERT that committed, and refunding a
// stored order would leave it paid for with no money behind it.
func (o *Orchestrator) confirmWrite(ctx context.Context, a *attempt, order *models.Order, createErr error) State {
	existing, err := o.lookupOrder(ctx, a.req.PaymentID)
	switch {
	case err == nil && existing.OrderNumber == order.OrderNumber:
		a.log.Warn("Order write reported an error but the order was stored",
			zap.String("order_number", existing.OrderNumber), zap.Error(createErr))
		a.order = existing
		a.log = a.log.With(zap.String("order_number", existing.OrderNumber))
		return StateOrderPersisted
	case err == nil:
		a.log.Info("Checkout already completed for this payment", zap.String("order_number", existing.OrderNumber))
		a.order = existing
		a.replayed = true
		return StateDone
	case errors.Is(err, repository.ErrOrderNotFound):
		a.persistErr = createErr
		return StatePersistFailed
	default:
		a.log.Error("Could not tell whether the order was stored", zap.Error(err), zap.NamedError("create_error", createErr))
		a.persistErr = createErr
		a.persistUnknown = true
		return StatePersistFailed
	}
}

func (o *Orchestrator) lookupOrder(ctx context.Context, paymentID string) (*models.Order, error) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return o.orders.FindByTransactionID(lctx, paymentID)
}

func (o *Orchestrator) buildOrder(a *attempt) *models.Order {
	now := o.clock.Now().UTC()
	data := a.req.Order

	currency := a.tx.Currency
	if currency == "" {
		currency = a.pricing.Currency
	}
	if currency == "" {
		currency = "INR"
	}

	order := &models.Order{
		Customer:              data.Customer,
		ShippingAddress:       data.ShippingAddress,
		Items:                 a.items,
		Subtotal:              a.pricing.Subtotal,
		Discount:              a.pricing.Discount,
		Shipping:              a.pricing.Shipping,
		Total:                 a.tx.AmountPaise,
		Currency:              strings.ToUpper(currency),
		CouponCode:            a.pricing.CouponCode,
		PaymentMethod:         firstNonEmpty(a.tx.Method, data.PaymentMethod, o.gateway.Name()),
		PaymentStatus:         models.PaymentStatusAuthorized,
		TransactionID:         a.req.PaymentID,
		MerchantTransactionID: a.req.GatewayOrderID,
		AmountVerified:        a.amountVerified,
		Status:                models.OrderStatusConfirmed,
		CustomerNotes:         strings.TrimSpace(data.Notes),
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = "IN"
	}

	note := "order placed, payment authorized"
	if a.tx.Status == models.GatewayStatusCaptured {
		order.PaymentStatus = models.PaymentStatusCompleted
		order.PaidAt = &now
		note = "order placed, payment captured by gateway"
	}
	order.StatusHistory = append(order.StatusHistory, models.StatusChange{
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Note:          note,
		Actor:         "checkout",
		At:            now,
	})
	return order
}

// capture moves the money for a persisted order. Only a fully verified
// amount is captured automatically.
func (o *Orchestrator) capture(ctx context.Context, a *attempt) State {
	if a.tx.Status == models.GatewayStatusCaptured {
		return StatePaymentCaptured
	}
	if a.flagReason != "" {
		return StateCapturePendingManual
	}

	// The order exists now; a buyer disconnect must not abandon the capture.
	ctx = context.WithoutCancel(ctx)
	if _, err := o.gateway.Capture(ctx, a.req.PaymentID, a.tx.AmountPaise, a.order.Currency); err != nil {
		if errors.Is(err, gateway.ErrOutcomeUnknown) {
			a.flagReason = reconcile.ReasonCaptureUnknown
		} else {
			a.flagReason = reconcile.ReasonCaptureFailed
		}
		a.log.Warn("Capture did not complete, leaving order for manual capture", zap.Error(err))
		return StateCapturePendingManual
	}

	now := o.clock.Now().UTC()
	change := models.StatusChange{
		Status:        a.order.Status,
		PaymentStatus: models.PaymentStatusCompleted,
		Note:          "payment captured",
		Actor:         "checkout",
		At:            now,
	}
	if _, err := o.orders.MarkCaptured(ctx, a.order.OrderNumber, now, change); err != nil {
		// Money moved but the row still says authorized; the worker fixes it.
		a.log.Error("Payment captured but order not updated", zap.Error(err))
		o.enqueue(ctx, a, reconcile.ReasonMarkCapturedFailed)
		return StatePaymentCaptured
	}
	a.order.PaymentStatus = models.PaymentStatusCompleted
	a.order.PaidAt = &now
	a.order.StatusHistory = append(a.order.StatusHistory, change)
	return StatePaymentCaptured
}

func (o *Orchestrator) captured(ctx context.Context, a *attempt) State {
	if a.flagReason != "" {
		// Captured by the gateway but priced without the store's settings.
		o.flag(ctx, a, a.flagReason)
	}
	return StateDone
}

func (o *Orchestrator) capturePending(ctx context.Context, a *attempt) State {
	a.captureDeferred = true
	o.flag(ctx, a, a.flagReason)
	o.metrics.CaptureDeferred()
	return StateDone
}

func (o *Orchestrator) flag(ctx context.Context, a *attempt, reason string) {
	ctx = context.WithoutCancel(ctx)
	now := o.clock.Now().UTC()
	err := o.orders.FlagReconciliation(ctx, a.order.OrderNumber, reason, models.StatusChange{
		Status:        a.order.Status,
		PaymentStatus: a.order.PaymentStatus,
		Note:          "needs reconciliation: " + reason,
		Actor:         "checkout",
		At:            now,
	})
	if err != nil {
		a.log.Error("Failed to flag order for reconciliation", zap.String("reason", reason), zap.Error(err))
	} else {
		a.order.NeedsReconciliation = true
		a.order.ReconciliationReason = reason
	}
	o.enqueue(ctx, a, reason)
}

func (o *Orchestrator) enqueue(ctx context.Context, a *attempt, reason string) {
	task := models.ReconciliationTask{
		PaymentID: a.req.PaymentID,
		Amount:    a.tx.AmountPaise,
		Currency:  a.tx.Currency,
		Reason:    reason,
		CreatedAt: o.clock.Now().UTC(),
	}
	if a.order != nil {
		task.OrderNumber = a.order.OrderNumber
		task.Currency = a.order.Currency
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		a.log.Error("Failed to enqueue reconciliation task", zap.String("reason", reason), zap.Error(err))
	}
}

func (o *Orchestrator) persistFailed(_ context.Context, a *attempt) State {
	a.log.Error("Failed to persist order", zap.Error(a.persistErr))
	if a.persistUnknown {
		return StateRefundSkipped
	}
	if a.tx.Status == models.GatewayStatusCaptured {
		return StateRefundAttempted
	}
	return StateRefundSkipped
}

// refund returns captured money for an order that could not be saved.
func (o *Orchestrator) refund(ctx context.Context, a *attempt) State {
	refunded := o.issueRefund(ctx, a, reconcile.ReasonRefundFailed)
	a.err = contactSupport(KindOrderPersistFailed, true, refunded, a.persistErr)
	return StateFailed
}

func (o *Orchestrator) issueRefund(ctx context.Context, a *attempt, failReason string) bool {
	ctx = context.WithoutCancel(ctx)
	res, err := o.gateway.Refund(ctx, a.req.PaymentID, nil)
	if err != nil {
		a.log.Error("Automatic refund failed", zap.Error(err))
		o.enqueue(ctx, a, failReason)
		return false
	}
	o.metrics.RefundInitiated()
	a.refundInitiated = true
	a.log.Info("Automatic refund initiated", zap.String("refund_id", res.RefundID))
	return true
}

// refundSkipped ends a failed write where no money was captured. An
// authorization lapses on its own, so the buyer may retry; an unknown status
// goes to support.
func (o *Orchestrator) refundSkipped(ctx context.Context, a *attempt) State {
	if a.persistUnknown {
		// The order may exist; support settles it once the row is checked.
		o.enqueue(context.WithoutCancel(ctx), a, reconcile.ReasonPersistUnknown)
		a.err = contactSupport(KindOrderPersistFailed, a.tx.Status == models.GatewayStatusCaptured, false, a.persistErr)
		return StateFailed
	}
	if a.tx.Status == models.GatewayStatusAuthorized {
		a.err = notCharged(KindOrderPersistFailed, a.persistErr)
	} else {
		a.err = contactSupport(KindOrderPersistFailed, false, false, a.persistErr)
	}
	return StateFailed
}

// finish runs the best-effort side effects of a completed checkout. A
// replayed request repeats none of them.
func (o *Orchestrator) finish(ctx context.Context, a *attempt) {
	switch {
	case a.replayed:
		o.metrics.CheckoutOutcome(OutcomeReplayed)
		return
	case a.captureDeferred:
		o.metrics.CheckoutOutcome(OutcomeCaptureDeferred)
	default:
		o.metrics.CheckoutOutcome(OutcomeConfirmed)
	}

	ctx = context.WithoutCancel(ctx)
	if code := a.order.CouponCode; code != "" && o.coupons != nil {
		if err := o.coupons.RedeemCoupon(ctx, code); err != nil {
			a.log.Warn("Coupon usage not recorded", zap.String("coupon_code", code), zap.Error(err))
		}
	}

	if o.notifier != nil {
		o.notifier.OrderConfirmed(*a.order)
	}

	event := events.NewOrderEvent(models.EventOrderConfirmed, a.order, o.clock.Now())
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := o.publisher.Publish(pctx, event); err != nil {
			o.logger.Warn("Failed to publish order event",
				zap.String("order_number", event.OrderNumber),
				zap.Error(err),
			)
		}
	}()

	a.log.Info("Checkout completed",
		zap.String("payment_status", string(a.order.PaymentStatus)),
		zap.Bool("capture_deferred", a.captureDeferred),
		zap.Bool("amount_verified", a.amountVerified),
		zap.Int64("total", a.order.Total),
	)
}

// Wait blocks until background event publishing has finished.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

func confirmation(a *attempt) *models.OrderConfirmation {
	return &models.OrderConfirmation{
		OrderNumber:     a.order.OrderNumber,
		Total:           a.order.Total,
		Currency:        a.order.Currency,
		Status:          a.order.Status,
		PaymentStatus:   a.order.PaymentStatus,
		CaptureDeferred: a.captureDeferred,
		AmountVerified:  a.order.AmountVerified,
		Replayed:        a.replayed,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func trailStrings(trail []State) []string {
	out := make([]string, len(trail))
	for i, s := range trail {
		out[i] = string(s)
	}
	return out
}
