// Package metrics exposes checkout and HTTP counters to Prometheus and, when
// enabled, mirrors the business counters to CloudWatch.
package metrics

import (
	"context"
	"strconv"
	"time"

	aws_pkg "github.com/anisha-singhal/Lumera-sub000/pkg/aws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	checkoutOutcomes *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	refunds          prometheus.Counter
	capturesDeferred prometheus.Counter
	notifyFailures   *prometheus.CounterVec

	cloudwatch *aws_pkg.MetricsClient
	logger     *zap.Logger
}

// NewRecorder registers the collectors on reg. cw may be nil.
func NewRecorder(reg prometheus.Registerer, cw *aws_pkg.MetricsClient, logger *zap.Logger) *Recorder {
	r := &Recorder{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		checkoutOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_outcomes_total",
				Help: "Checkout completions by terminal outcome",
			},
			[]string{"outcome"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Gateway webhook events by code and processing result",
			},
			[]string{"code", "result"},
		),
		refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refunds_initiated_total",
			Help: "Automatic refunds issued after a failed checkout",
		}),
		capturesDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "captures_deferred_total",
			Help: "Orders saved with a payment left for manual capture",
		}),
		notifyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_failed_total",
				Help: "Best-effort buyer notifications that could not be sent",
			},
			[]string{"channel"},
		),
		cloudwatch: cw,
		logger:     logger,
	}

	reg.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.checkoutOutcomes,
		r.webhookEvents,
		r.refunds,
		r.capturesDeferred,
		r.notifyFailures,
	)
	return r
}

func (r *Recorder) ObserveHTTP(method, path string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())

	dims := map[string]string{"Method": method, "Path": path}
	r.forward(func(ctx context.Context, cw *aws_pkg.MetricsClient) error {
		if err := cw.RecordCount(ctx, aws_pkg.MetricHTTPRequests, dims); err != nil {
			return err
		}
		if status >= 400 {
			if err := cw.RecordCount(ctx, aws_pkg.MetricHTTPErrors, dims); err != nil {
				return err
			}
		}
		return cw.RecordLatency(ctx, aws_pkg.MetricHTTPLatency, d, dims)
	})
}

func (r *Recorder) CheckoutOutcome(outcome string) {
	if r == nil {
		return
	}
	r.checkoutOutcomes.WithLabelValues(outcome).Inc()
	r.forward(func(ctx context.Context, cw *aws_pkg.MetricsClient) error {
		return cw.RecordCount(ctx, aws_pkg.MetricCheckoutOutcome, map[string]string{"Outcome": outcome})
	})
}

func (r *Recorder) WebhookEvent(code, result string) {
	if r == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	r.webhookEvents.WithLabelValues(code, result).Inc()
	r.forward(func(ctx context.Context, cw *aws_pkg.MetricsClient) error {
		return cw.RecordCount(ctx, aws_pkg.MetricWebhookProcessed, map[string]string{"Code": code, "Result": result})
	})
}

func (r *Recorder) RefundInitiated() {
	if r == nil {
		return
	}
	r.refunds.Inc()
	r.forward(func(ctx context.Context, cw *aws_pkg.MetricsClient) error {
		return cw.RecordCount(ctx, aws_pkg.MetricRefundInitiated, nil)
	})
}

func (r *Recorder) CaptureDeferred() {
	if r == nil {
		return
	}
	r.capturesDeferred.Inc()
	r.forward(func(ctx context.Context, cw *aws_pkg.MetricsClient) error {
		return cw.RecordCount(ctx, aws_pkg.MetricCaptureDeferred, nil)
	})
}

func (r *Recorder) NotificationFailed(channel string) {
	if r == nil {
		return
	}
	r.notifyFailures.WithLabelValues(channel).Inc()
}

// forward ships a data point to CloudWatch off the request path.
func (r *Recorder) forward(send func(ctx context.Context, cw *aws_pkg.MetricsClient) error) {
	if !r.cloudwatch.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := send(ctx, r.cloudwatch); err != nil && r.logger != nil {
			r.logger.Warn("cloudwatch metric failed", zap.Error(err))
		}
	}()
}

// Handler serves the Prometheus exposition format for g.
func Handler(g prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
