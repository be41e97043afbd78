package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERFLOW_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERFLOW_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	Upstream  UpstreamConfig
	Pricing   PricingConfig
	Reconcile ReconcileConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// UpstreamConfig locates the collaborator services and bounds calls to them.
type UpstreamConfig struct {
	CartURL         string        `usage:"Cart service base URL" flag:"cart-url"`
	DiscountURL     string        `usage:"Discount service base URL" flag:"discount-url"`
	NotificationURL string        `usage:"Notification service base URL" flag:"notification-url"`
	AuthURL         string        `usage:"Auth service base URL" flag:"auth-url"`
	Timeout         time.Duration `default:"3s" usage:"Per-attempt timeout for collaborator calls"`
	MaxAttempts     int           `default:"2"  usage:"Attempts per collaborator call" flag:"max-attempts"`
}

// PricingConfig holds the order pricing parameters.
type PricingConfig struct {
	TaxRate               string `default:"0.10" usage:"Tax rate applied after discount" flag:"tax-rate"`
	FreeShippingThreshold string `default:"100"  usage:"Subtotal above which shipping is free" flag:"free-shipping-threshold"`
	StandardShippingCost  string `default:"10"   usage:"Shipping cost below the free threshold" flag:"shipping-cost"`
}

// ReconcileConfig controls the cart clear retry loop.
type ReconcileConfig struct {
	Interval    time.Duration `default:"30s" usage:"Reconciler poll interval"`
	BatchSize   int           `default:"50"  usage:"Retries drained per tick" flag:"batch-size"`
	MaxAttempts int           `default:"10"  usage:"Max clear attempts before giving up" flag:"reconcile-max-attempts"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERFLOW",
		Files:     []string{"config.yaml", "/etc/orderflow/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERFLOW_DATABASE_URL or DATABASE_URL")
	}
	for _, v := range []string{cfg.Pricing.TaxRate, cfg.Pricing.FreeShippingThreshold, cfg.Pricing.StandardShippingCost} {
		if _, err := decimal.NewFromString(v); err != nil {
			return nil, errors.Wrapf(err, "invalid pricing value %q", v)
		}
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's ORDERFLOW_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
