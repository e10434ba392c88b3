package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/cache"
	"github.com/anisha-singhal/Lumera-sub000/checkout"
	"github.com/anisha-singhal/Lumera-sub000/common/auth"
	apperrors "github.com/anisha-singhal/Lumera-sub000/common/errors"
	"github.com/anisha-singhal/Lumera-sub000/common/logger"
	"github.com/anisha-singhal/Lumera-sub000/config"
	"github.com/anisha-singhal/Lumera-sub000/controllers"
	"github.com/anisha-singhal/Lumera-sub000/database"
	"github.com/anisha-singhal/Lumera-sub000/events"
	"github.com/anisha-singhal/Lumera-sub000/gateway"
	"github.com/anisha-singhal/Lumera-sub000/metrics"
	"github.com/anisha-singhal/Lumera-sub000/middleware"
	"github.com/anisha-singhal/Lumera-sub000/notification"
	aws_pkg "github.com/anisha-singhal/Lumera-sub000/pkg/aws"
	"github.com/anisha-singhal/Lumera-sub000/reconcile"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/anisha-singhal/Lumera-sub000/routes"
	"github.com/anisha-singhal/Lumera-sub000/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const serviceName = "checkout-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[CheckoutService] Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)

	var cwWriter *aws_pkg.CloudWatchLogsClient
	if awsErr == nil && os.Getenv("CLOUDWATCH_ENABLED") == "true" {
		if cwWriter, err = aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName); err != nil {
			log.Printf("[CheckoutService] CloudWatch Logs disabled: %v", err)
			cwWriter = nil
		}
	}
	var zapLogger *zap.Logger
	if cwWriter != nil {
		zapLogger, err = logger.New(cfg.Env, cwWriter)
	} else {
		zapLogger, err = logger.New(cfg.Env, nil)
	}
	if err != nil {
		log.Fatalf("[CheckoutService] Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	if awsErr != nil {
		zapLogger.Warn("AWS config unavailable, AWS integrations disabled", zap.Error(awsErr))
	}

	db, err := database.ConnectPostgres(cfg.PostgresDSN(), zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var cwMetrics *aws_pkg.MetricsClient
	if awsErr == nil {
		cwMetrics = aws_pkg.NewMetricsClient(awsCfg)
	}
	rec := metrics.NewRecorder(registry, cwMetrics, zapLogger)

	gw, err := newGateway(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to configure payment gateway", zap.Error(err))
	}
	zapLogger.Info("Payment gateway configured", zap.String("gateway", gw.Name()))

	clk := clock.WallClock
	orders := repository.NewGormOrderRepository(db)
	coupons := services.NewCouponService(repository.NewGormCouponRepository(db), clk, zapLogger)
	settings := services.NewSettingsService(repository.NewGormSettingsRepository(db), newSettingsCache(ctx, cfg, clk, zapLogger), zapLogger)
	pricing := services.NewPricingService(settings, coupons, zapLogger)

	publisher := newPublisher(cfg, awsCfg, awsErr, zapLogger)
	defer func() { _ = publisher.Close() }()

	var queue reconcile.Queue = reconcile.NewLogQueue(zapLogger)
	var sqsClient *aws_pkg.SQSClient
	if cfg.ReconciliationQueueURL != "" && awsErr == nil {
		sqsClient = aws_pkg.NewSQSClient(awsCfg, cfg.ReconciliationQueueURL, zapLogger)
		queue = reconcile.NewSQSQueue(sqsClient)
	}

	var ledger repository.WebhookLedger = repository.NoopWebhookLedger{}
	if cfg.WebhookLedgerTable != "" && awsErr == nil {
		ledger = repository.NewDynamoWebhookLedger(aws_pkg.NewDynamoDBClient(awsCfg), cfg.WebhookLedgerTable, 0)
	}

	notifier := notification.NewOrderNotifier(newEmailSender(cfg, zapLogger), newSMSSender(cfg, zapLogger), rec, clk, zapLogger,
		notification.Options{Timeout: 30 * time.Second, Attempts: 3, Backoff: time.Second})

	orchestrator := checkout.New(checkout.Deps{
		Gateway:   gw,
		Orders:    orders,
		Pricing:   pricing,
		Coupons:   coupons,
		Notifier:  notifier,
		Publisher: publisher,
		Queue:     queue,
		Metrics:   rec,
		Clock:     clk,
		Logger:    zapLogger,
	})

	if sqsClient != nil {
		worker := reconcile.NewWorker(sqsClient, gw, orders, clk, zapLogger)
		go worker.Start(ctx)
	}

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute)
	go limiter.RunSweeper(ctx)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.CORS(cfg.StorefrontOrigins),
		logger.RequestID(),
		middleware.RequestLogger(zapLogger),
		middleware.Metrics(rec),
		middleware.SecurityHeaders(),
		middleware.Timeout(cfg.CheckoutDeadline),
		apperrors.ErrorMiddleware(),
	)

	r.GET("/health", healthHandler(db))
	r.GET("/metrics", metrics.Handler(registry))

	routes.RegisterRoutes(r, routes.Controllers{
		Checkout: controllers.NewCheckoutController(orchestrator, pricing),
		Webhooks: controllers.NewWebhookController(services.NewWebhookService(gw, orders, ledger, rec, clk, zapLogger)),
		Coupons:  controllers.NewCouponController(coupons),
		Admin:    controllers.NewAdminController(services.NewAdminOrderService(orders, gw, publisher, clk, zapLogger), settings),
	}, limiter, auth.NewTokenParser(cfg.AdminJWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Checkout service running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown failed", zap.Error(err))
	}

	// Let in-flight events and notifications finish before the bus closes.
	drained := make(chan struct{})
	go func() {
		orchestrator.Wait()
		notifier.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		zapLogger.Warn("Background work still running at shutdown")
	}
}

func newGateway(cfg *config.Config) (gateway.Gateway, error) {
	if cfg.PaymentGateway == "stripe" {
		gw, err := gateway.NewStripeGateway(gateway.StripeConfig{
			SecretKey:      cfg.StripeSecretKey,
			PublishableKey: cfg.StripePublishableKey,
			WebhookSecret:  cfg.StripeWebhookKey,
			SigningSecret:  cfg.StripeSigningSecret,
			Timeout:        cfg.GatewayTimeout,
		})
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
	gw, err := gateway.NewRazorpayGateway(gateway.RazorpayConfig{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		BaseURL:       cfg.RazorpayBaseURL,
		Timeout:       cfg.GatewayTimeout,
	})
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func newSettingsCache(ctx context.Context, cfg *config.Config, clk clock.Clock, log *zap.Logger) cache.Cache {
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			return cache.NewRedisCache(client, "checkout", cfg.SettingsCacheTTL, log)
		}
		log.Warn("Redis unavailable, caching settings in memory", zap.Error(err))
	}
	return cache.NewMemoryCache(clk, cfg.SettingsCacheTTL)
}

func newPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, log *zap.Logger) events.Publisher {
	switch cfg.EventBus {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	case "sns":
		if awsErr == nil {
			return events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN)
		}
		log.Warn("EVENT_BUS=sns but AWS is not configured, logging events instead")
	}
	return events.NewLogPublisher(log)
}

func newEmailSender(cfg *config.Config, log *zap.Logger) notification.EmailSender {
	s, err := notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if err != nil {
		log.Info("Email notifications disabled", zap.Error(err))
		return notification.NewLogSender(log)
	}
	return s
}

func newSMSSender(cfg *config.Config, log *zap.Logger) notification.SMSSender {
	s, err := notification.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	if err != nil {
		log.Info("SMS notifications disabled", zap.Error(err))
		return notification.NewLogSender(log)
	}
	return s
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	}
}
