// Package notification tells buyers about their orders. Every send is best
// effort: failures are logged and counted, never returned to checkout.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/metrics"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var orderConfirmedEmail = template.Must(template.New("order_confirmed").Funcs(template.FuncMap{
	"rupees": rupees,
}).Parse(`<h2>Thank you, {{.Customer.Name}}!</h2>
<p>Your order <strong>{{.OrderNumber}}</strong> is confirmed.</p>
<table>
{{range .Items}}<tr><td>{{.Name}} &times; {{.Quantity}}</td><td>{{rupees .LineTotal}}</td></tr>
{{end}}{{if .Discount}}<tr><td>Discount{{if .CouponCode}} ({{.CouponCode}}){{end}}</td><td>-{{rupees .Discount}}</td></tr>
{{end}}<tr><td>Shipping</td><td>{{if .Shipping}}{{rupees .Shipping}}{{else}}Free{{end}}</td></tr>
<tr><td><strong>Total</strong></td><td><strong>{{rupees .Total}}</strong></td></tr>
</table>
<p>We will write again when your candles ship.</p>
`))

func rupees(paise int64) string {
	return "₹" + decimal.New(paise, -2).StringFixed(2)
}

type Options struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// OrderNotifier sends the order confirmation by email, and by SMS when the
// buyer left a phone number.
type OrderNotifier struct {
	email   EmailSender
	sms     SMSSender
	metrics *metrics.Recorder
	clock   clock.Clock
	logger  *zap.Logger
	opts    Options

	wg sync.WaitGroup
}

func NewOrderNotifier(email EmailSender, sms SMSSender, rec *metrics.Recorder, clk clock.Clock, logger *zap.Logger, opts Options) *OrderNotifier {
	if clk == nil {
		clk = clock.WallClock
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	return &OrderNotifier{email: email, sms: sms, metrics: rec, clock: clk, logger: logger, opts: opts}
}

// OrderConfirmed returns immediately; sending happens in the background.
func (n *OrderNotifier) OrderConfirmed(order models.Order) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.opts.Timeout)
		defer cancel()
		n.send(ctx, order)
	}()
}

// Wait blocks until every pending notification has finished.
func (n *OrderNotifier) Wait() {
	n.wg.Wait()
}

func (n *OrderNotifier) send(ctx context.Context, order models.Order) {
	log := n.logger.With(zap.String("order_number", order.OrderNumber))

	if n.email != nil && order.Customer.Email != "" {
		var buf bytes.Buffer
		if err := orderConfirmedEmail.Execute(&buf, order); err != nil {
			log.Error("Failed to render confirmation email", zap.Error(err))
			n.metrics.NotificationFailed(ChannelEmail)
		} else {
			subject := fmt.Sprintf("Order %s confirmed", order.OrderNumber)
			n.withRetry(ctx, log, ChannelEmail, func() (SendResult, error) {
				return n.email.SendEmail(ctx, order.Customer.Email, subject, buf.String())
			})
		}
	}

	if n.sms != nil && strings.TrimSpace(order.Customer.Phone) != "" {
		msg := fmt.Sprintf("Lumera: order %s confirmed, total %s. Thank you!", order.OrderNumber, rupees(order.Total))
		n.withRetry(ctx, log, ChannelSMS, func() (SendResult, error) {
			return n.sms.SendSMS(ctx, order.Customer.Phone, msg)
		})
	}
}

func (n *OrderNotifier) withRetry(ctx context.Context, log *zap.Logger, channel string, send func() (SendResult, error)) {
	var lastErr error
	for attempt := 0; attempt < n.opts.Attempts; attempt++ {
		if attempt > 0 {
			if err := n.sleep(ctx, time.Duration(attempt)*n.opts.Backoff); err != nil {
				lastErr = err
				break
			}
		}

		result, err := send()
		if err == nil {
			log.Info("Notification sent", zap.String("channel", channel), zap.String("message_id", result.MessageID))
			return
		}
		lastErr = err
		log.Warn("Send attempt failed", zap.String("channel", channel), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	log.Error("Notification not delivered", zap.String("channel", channel), zap.Error(lastErr))
	n.metrics.NotificationFailed(channel)
}

func (n *OrderNotifier) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.clock.After(d):
		return nil
	}
}
