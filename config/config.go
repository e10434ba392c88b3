package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/anisha-singhal/Lumera-sub000/pkg/aws"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	PaymentGateway        string
	GatewayTimeout        time.Duration
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	StripeSecretKey       string
	StripePublishableKey  string
	StripeWebhookKey      string
	StripeSigningSecret   string

	RedisURL         string
	SettingsCacheTTL time.Duration

	EventBus               string
	OrderSNSTopicARN       string
	KafkaBrokers           []string
	OrderEventsTopic       string
	ReconciliationQueueURL string
	WebhookLedgerTable     string

	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	AdminJWTSecret    string
	StorefrontOrigins []string
	RateLimitPerSec   float64
	RateLimitBurst    int
	CheckoutDeadline  time.Duration
}

// secretReader is the part of aws_pkg.SecretsClient the loader needs.
type secretReader interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads the environment (and .env when present). With
// AWS_USE_SECRETS=true database and gateway credentials are taken from
// Secrets Manager.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := fromEnv()

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8090"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),

		PaymentGateway:        strings.ToLower(getEnv("PAYMENT_GATEWAY", "razorpay")),
		GatewayTimeout:        getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       os.Getenv("RAZORPAY_BASE_URL"),
		StripeSecretKey:       os.Getenv("STRIPE_API_KEY"),
		StripePublishableKey:  os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookKey:      os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSigningSecret:   os.Getenv("STRIPE_CHECKOUT_SIGNING_SECRET"),

		RedisURL:         os.Getenv("REDIS_URL"),
		SettingsCacheTTL: getDuration("SETTINGS_CACHE_TTL", 5*time.Minute),

		EventBus:               strings.ToLower(os.Getenv("EVENT_BUS")),
		OrderSNSTopicARN:       getEnv("ORDER_SNS_TOPIC_ARN", "arn:aws:sns:ap-south-1:000000000000:order-events"),
		KafkaBrokers:           splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:       getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		ReconciliationQueueURL: os.Getenv("RECONCILIATION_QUEUE_URL"),
		WebhookLedgerTable:     os.Getenv("WEBHOOK_LEDGER_TABLE"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:         getEnv("SMTP_FROM", "orders@lumera.in"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		AdminJWTSecret:    os.Getenv("ADMIN_JWT_SECRET"),
		StorefrontOrigins: splitList(getEnv("STOREFRONT_ORIGINS", "http://localhost:3000")),
		RateLimitPerSec:   getFloat("RATE_LIMIT_PER_SEC", 5),
		RateLimitBurst:    getInt("RATE_LIMIT_BURST", 10),
		CheckoutDeadline:  getDuration("CHECKOUT_DEADLINE", 45*time.Second),
	}
}

func applySecrets(ctx context.Context, cfg *Config, sm secretReader) {
	if m, err := sm.GetSecretMap(ctx, "checkout/DB_CREDENTIALS"); err == nil {
		override(&cfg.PostgresUser, m, "POSTGRES_USER")
		override(&cfg.PostgresPassword, m, "POSTGRES_PASSWORD")
		override(&cfg.PostgresDB, m, "POSTGRES_DB")
		override(&cfg.PostgresHost, m, "POSTGRES_HOST")
		override(&cfg.PostgresPort, m, "POSTGRES_PORT")
	}
	if m, err := sm.GetSecretMap(ctx, "checkout/GATEWAY"); err == nil {
		override(&cfg.RazorpayKeyID, m, "RAZORPAY_KEY_ID")
		override(&cfg.RazorpayKeySecret, m, "RAZORPAY_KEY_SECRET")
		override(&cfg.RazorpayWebhookSecret, m, "RAZORPAY_WEBHOOK_SECRET")
		override(&cfg.StripeSecretKey, m, "STRIPE_API_KEY")
		override(&cfg.StripeWebhookKey, m, "STRIPE_WEBHOOK_SECRET")
		override(&cfg.StripeSigningSecret, m, "STRIPE_CHECKOUT_SIGNING_SECRET")
		override(&cfg.AdminJWTSecret, m, "ADMIN_JWT_SECRET")
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}

	switch c.PaymentGateway {
	case "razorpay":
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" || c.RazorpayWebhookSecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID, RAZORPAY_KEY_SECRET and RAZORPAY_WEBHOOK_SECRET are required")
		}
	case "stripe":
		if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
			return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required")
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_GATEWAY %q", c.PaymentGateway)
	}

	switch c.EventBus {
	case "", "none", "sns":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}

	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// PostgresDSN builds the GORM postgres DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func override(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
