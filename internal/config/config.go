package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/pricing"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	SecureCookies         bool
	MasterPassword        string

	QuotePrimaryURL      string
	QuoteFallbackURL     string
	QuoteSymbol          string
	QuoteTimeoutSeconds  int
	QuoteCacheTTLSeconds int

	InvoiceCostUSD             decimal.Decimal
	RemessaSpread              decimal.Decimal
	USDTSpread                 decimal.Decimal
	UngatedNoServiceCommission bool

	RecomputeWorkers int
}

func Load() Config {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	defaults := pricing.DefaultConfig()
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		SecureCookies:         getBool("COOKIE_SECURE", false),
		MasterPassword:        os.Getenv("MASTER_PASSWORD"),

		QuotePrimaryURL:      strings.TrimSpace(os.Getenv("QUOTE_PRIMARY_URL")),
		QuoteFallbackURL:     strings.TrimSpace(os.Getenv("QUOTE_FALLBACK_URL")),
		QuoteSymbol:          getEnv("QUOTE_SYMBOL", "USDTBRL"),
		QuoteTimeoutSeconds:  getPositiveInt("QUOTE_TIMEOUT_SECONDS", 10),
		QuoteCacheTTLSeconds: getNonNegativeInt("QUOTE_CACHE_TTL_SECONDS", 0),

		InvoiceCostUSD:             getDecimal("PRICING_INVOICE_COST_USD", defaults.InvoiceIssueCostUSD),
		RemessaSpread:              getDecimal("PRICING_REMESSA_SPREAD", defaults.RemessaSpreadPercent),
		USDTSpread:                 getDecimal("PRICING_USDT_SPREAD", defaults.USDTSpreadPercent),
		UngatedNoServiceCommission: getBool("PRICING_UNGATED_NO_SERVICE_COMMISSION", false),

		RecomputeWorkers: getPositiveInt("RECOMPUTE_WORKERS", 8),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) QuoteTimeout() time.Duration {
	return time.Duration(c.QuoteTimeoutSeconds) * time.Second
}

// QuoteCacheTTL is how long a shared quote snapshot is reused. Zero disables
// the cache so every memo asks the feeds.
func (c Config) QuoteCacheTTL() time.Duration {
	return time.Duration(c.QuoteCacheTTLSeconds) * time.Second
}

// Pricing returns the engine constants with the configured overrides applied.
// Invoice tiers are fixed business rules and are not configurable.
func (c Config) Pricing() pricing.Config {
	p := pricing.DefaultConfig()
	p.InvoiceIssueCostUSD = c.InvoiceCostUSD
	p.RemessaSpreadPercent = c.RemessaSpread
	p.USDTSpreadPercent = c.USDTSpread
	p.UngatedNoServiceCommission = c.UngatedNoServiceCommission
	return p
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func getNonNegativeInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return fallback
	}
	return v
}
