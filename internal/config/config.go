package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultVisitAccessTTL        = "168h"
	defaultGatewayPendingTimeout = "15m"
	defaultGatewayHTTPTimeout    = "30s"
	defaultCurrencyTolerance     = "0.01"
	defaultAutoCheckout          = "true"
	defaultBookingExpiryHours    = "0"
	defaultJWTAccessTTL          = "24h"
	defaultJWTSecret             = "change-me-jwt-secret"
	defaultAzamBaseURL           = "https://sandbox.azampay.co.tz"
	defaultAzamAppName           = "PropertyHub"
	defaultCurrency              = "TZS"
)

type Config struct {
	AppEnv      string
	DatabaseURL string
	ListenAddr  string

	JWTSecret    string
	JWTAccessTTL time.Duration

	// Validity window for paid visit access.
	VisitAccessTTL time.Duration
	// Pending gateway payments older than this are swept to failed.
	GatewayPendingTimeout time.Duration
	// Hard timeout on outbound provider calls.
	GatewayHTTPTimeout time.Duration
	GatewayWebhookURL  string

	// Auto-cancel window for unpaid pending bookings; 0 disables.
	DefaultBookingExpirationHours int

	// Rounding tolerance for "paid == total".
	CurrencyTolerance   float64
	AutoCheckoutEnabled bool
	Currency            string

	AzamPay AzamPayConfig

	ReceiptDir string
}

type AzamPayConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	APIKey        string
	AppName       string
	WebhookSecret string
	Sandbox       bool
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ListenAddr = strings.TrimSpace(getEnv("LISTEN_ADDR", ":8080"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.GatewayWebhookURL = strings.TrimSpace(os.Getenv("GATEWAY_WEBHOOK_URL"))
	cfg.ReceiptDir = strings.TrimSpace(getEnv("RECEIPT_DIR", "data/receipts"))
	cfg.Currency = strings.TrimSpace(getEnv("CURRENCY", defaultCurrency))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.VisitAccessTTL, err = parseDurationEnv("VISIT_ACCESS_TTL", defaultVisitAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.GatewayPendingTimeout, err = parseDurationEnv("GATEWAY_PENDING_TIMEOUT", defaultGatewayPendingTimeout)
	if err != nil {
		return nil, err
	}
	cfg.GatewayHTTPTimeout, err = parseDurationEnv("GATEWAY_HTTP_TIMEOUT", defaultGatewayHTTPTimeout)
	if err != nil {
		return nil, err
	}

	cfg.CurrencyTolerance, err = parseFloatEnv("CURRENCY_TOLERANCE", defaultCurrencyTolerance)
	if err != nil {
		return nil, err
	}
	cfg.DefaultBookingExpirationHours, err = parseIntEnv("BOOKING_EXPIRATION_HOURS", defaultBookingExpiryHours)
	if err != nil {
		return nil, err
	}
	cfg.AutoCheckoutEnabled = parseBoolEnv("AUTO_CHECKOUT_ENABLED", defaultAutoCheckout)

	cfg.AzamPay = AzamPayConfig{
		BaseURL:       strings.TrimSpace(getEnv("AZAM_PAY_BASE_URL", defaultAzamBaseURL)),
		ClientID:      strings.TrimSpace(os.Getenv("AZAM_PAY_CLIENT_ID")),
		ClientSecret:  strings.TrimSpace(os.Getenv("AZAM_PAY_CLIENT_SECRET")),
		APIKey:        strings.TrimSpace(os.Getenv("AZAM_PAY_API_KEY")),
		AppName:       strings.TrimSpace(getEnv("AZAM_PAY_APP_NAME", defaultAzamAppName)),
		WebhookSecret: strings.TrimSpace(os.Getenv("AZAM_PAY_WEBHOOK_SECRET")),
		Sandbox:       parseBoolEnv("AZAM_PAY_SANDBOX", "true"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.VisitAccessTTL <= 0 {
		return fmt.Errorf("VISIT_ACCESS_TTL must be > 0")
	}
	if cfg.GatewayPendingTimeout <= 0 {
		return fmt.Errorf("GATEWAY_PENDING_TIMEOUT must be > 0")
	}
	if cfg.GatewayHTTPTimeout <= 0 {
		return fmt.Errorf("GATEWAY_HTTP_TIMEOUT must be > 0")
	}
	if cfg.CurrencyTolerance < 0 {
		return fmt.Errorf("CURRENCY_TOLERANCE must be >= 0")
	}
	if cfg.DefaultBookingExpirationHours < 0 {
		return fmt.Errorf("BOOKING_EXPIRATION_HOURS must be >= 0")
	}
	if IsProdLike(cfg.AppEnv) {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("in prod/release DATABASE_URL must be set")
		}
		if cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.AzamPay.WebhookSecret == "" && !cfg.AzamPay.Sandbox {
			return fmt.Errorf("AZAM_PAY_WEBHOOK_SECRET must be set outside sandbox")
		}
	}
	return nil
}

// IsProdLike reports whether the environment should run with production
// hardening.
func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseFloatEnv(name, fallback string) (float64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return f, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
