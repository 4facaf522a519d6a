package app

import (
	"io/fs"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-api/internal/domain/order"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	PayPal      PayPalConfig `env:"PAYPAL" yaml:"paypal" flag:"paypal"`
	Pricing     PricingConfig
	Catalog     CatalogConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls bearer token signing.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" yaml:"jwt_secret" flag:"jwt-secret" usage:"HMAC secret for HS256 tokens"`
	TokenTTL  time.Duration `default:"720h" usage:"Lifetime of issued tokens"`
}

// PayPalConfig holds the payment processor credentials.
type PayPalConfig struct {
	ClientID      string        `usage:"PayPal REST client ID, also served to the browser SDK"`
	ClientSecret  string        `usage:"PayPal REST client secret"`
	BaseURL       string        `default:"https://api-m.sandbox.paypal.com" usage:"PayPal REST base URL"`
	Currency      string        `default:"USD" usage:"Expected capture currency, empty accepts any"`
	VerifyTimeout time.Duration `default:"10s" usage:"Timeout for verifying a payment with PayPal"`
}

// PricingConfig holds the order pricing rules as decimal strings.
type PricingConfig struct {
	TaxRate               string `default:"0.15" usage:"Tax rate applied to the items price"`
	FreeShippingThreshold string `default:"100" usage:"Items price from which shipping is free"`
	FlatShipping          string `default:"10" usage:"Shipping price below the free shipping threshold"`
}

// CatalogConfig controls product listings.
type CatalogConfig struct {
	PageSize int `default:"8" usage:"Products per catalog page"`
}

// KafkaConfig controls order event publishing. Events are dropped when no
// brokers are configured.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"shop.orders" usage:"Topic for order events"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Rate           float64  `default:"10" usage:"Sustained requests per second per client"`
	Burst          int      `default:"40" usage:"Burst size per client"`
	TrustedProxies []string `usage:"Proxy addresses or CIDRs whose X-Forwarded-For is honoured" flag:"trusted-proxies"`
}

// Proxies parses TrustedProxies. Bare addresses become single-host prefixes.
func (c RateLimitConfig) Proxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "parse trusted proxy %q", raw)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse trusted proxy %q", raw)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from .env, environment variables, YAML
// config files and flags, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/shop/config.yaml"},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	acfg.EnvPrefix = "SHOP"
	acfg.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case len(c.Auth.JWTSecret) < 32:
		return errors.New("SHOP_AUTH_JWT_SECRET must be at least 32 bytes")
	case c.PayPal.ClientID == "" || c.PayPal.ClientSecret == "":
		return errors.New("PayPal credentials are required: set SHOP_PAYPAL_CLIENT_ID and SHOP_PAYPAL_CLIENT_SECRET")
	case c.Catalog.PageSize <= 0:
		return errors.Errorf("catalog page size must be positive, got %d", c.Catalog.PageSize)
	}
	if _, err := c.Pricing.Parse(); err != nil {
		return err
	}
	if _, err := c.RateLimit.Proxies(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Parse converts the configured rules into order pricing.
func (p PricingConfig) Parse() (order.Pricing, error) {
	var out order.Pricing
	for _, f := range []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"tax rate", p.TaxRate, &out.TaxRate},
		{"free shipping threshold", p.FreeShippingThreshold, &out.FreeShippingThreshold},
		{"flat shipping", p.FlatShipping, &out.FlatShipping},
	} {
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return order.Pricing{}, errors.Wrapf(err, "parse %s", f.name)
		}
		if d.IsNegative() {
			return order.Pricing{}, errors.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return out, nil
}
