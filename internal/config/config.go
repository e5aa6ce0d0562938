// Package config loads the process configuration from the environment.
// Unset, blank or unparsable variables take their defaults; Load then
// normalizes aliases and reports every invalid value in one error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "telemed-orchestrator")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite path
	URL    string // Postgres DSN
}

// ProviderConfig configures the medical-consultation provider client.
type ProviderConfig struct {
	BaseURL     string
	Token       string
	ClientID    string
	Timeout     time.Duration // fixed client-wide timeout, no retry
	MinInterval time.Duration // spacing between outgoing calls
}

// PaymentsConfig configures the payment-provider client and webhook.
type PaymentsConfig struct {
	BaseURL      string
	APIKey       string
	WebhookToken string // expected asaas-access-token header; empty disables the check
	Timeout      time.Duration
}

// CacheConfig configures the lookup read-through caches.
type CacheConfig struct {
	Backend      string // memory|redis
	RedisURL     string
	SpecialtyTTL time.Duration
	ReferralTTL  time.Duration
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 45s (upstream calls take up to 30s)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB DBConfig

	// Orchestration
	SessionTTL          time.Duration // lifetime of an active session
	RequireSubscription bool          // gate start_consultation behind an active subscription

	// Upstreams
	Provider ProviderConfig
	Payments PaymentsConfig

	// Lookups
	Cache CacheConfig

	// Auth
	Auth AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment. The returned Config is populated even when
// the error is non-nil.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 45*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "telemed.db"),
			URL:    getenv("DATABASE_URL", ""),
		},

		// Orchestration
		SessionTTL:          getdur("SESSION_TTL", time.Hour),
		RequireSubscription: getbool("REQUIRE_SUBSCRIPTION", false),

		// Upstreams
		Provider: ProviderConfig{
			BaseURL:     strings.TrimRight(getenv("RAPIDOC_BASE_URL", "https://api.rapidoc.tech"), "/"),
			Token:       getenv("RAPIDOC_TOKEN", ""),
			ClientID:    getenv("RAPIDOC_CLIENT_ID", ""),
			Timeout:     getdur("RAPIDOC_TIMEOUT", 30*time.Second),
			MinInterval: getdur("RAPIDOC_MIN_INTERVAL", 100*time.Millisecond),
		},
		Payments: PaymentsConfig{
			BaseURL:      strings.TrimRight(getenv("ASAAS_BASE_URL", "https://api.asaas.com/v3"), "/"),
			APIKey:       getenv("ASAAS_API_KEY", ""),
			WebhookToken: getenv("ASAAS_WEBHOOK_TOKEN", ""),
			Timeout:      getdur("ASAAS_TIMEOUT", 30*time.Second),
		},

		// Lookups
		Cache: CacheConfig{
			Backend:      strings.ToLower(getenv("CACHE_BACKEND", "memory")),
			RedisURL:     getenv("REDIS_URL", ""),
			SpecialtyTTL: getdur("SPECIALTY_CACHE_TTL", 5*time.Minute),
			ReferralTTL:  getdur("REFERRAL_CACHE_TTL", 2*time.Minute),
		},

		// Auth
		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "telemed-orchestrator"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	switch c.DB.Driver {
	case "postgresql", "pg":
		c.DB.Driver = "postgres"
	case "sqlite3":
		c.DB.Driver = "sqlite"
	}
}

// Validate reports every invalid setting at once, joined with errors.Join.
func (c Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of trace, debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) == "", "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"server timeouts must be positive durations")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DB.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.DB.Path) == "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DB.URL) == "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres", c.DB.Driver))
	}

	check(c.SessionTTL <= 0, "SESSION_TTL must be > 0")
	check(c.Provider.BaseURL == "", "RAPIDOC_BASE_URL must not be empty")
	check(c.Provider.Timeout <= 0 || c.Payments.Timeout <= 0, "upstream timeouts must be positive durations")
	check(c.Provider.MinInterval < 0, "RAPIDOC_MIN_INTERVAL must be >= 0")
	check(c.RequireSubscription && c.Payments.APIKey == "", "ASAAS_API_KEY is required when REQUIRE_SUBSCRIPTION is on")

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		check(strings.TrimSpace(c.Cache.RedisURL) == "", "REDIS_URL is required when CACHE_BACKEND=redis")
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND %q is not one of memory, redis", c.Cache.Backend))
	}
	check(c.Cache.SpecialtyTTL <= 0 || c.Cache.ReferralTTL <= 0, "cache TTLs must be positive durations")

	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// env returns the parsed value of k, or def when k is unset, blank or does
// not parse.
func env[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	out, err := parse(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	return env(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getint(k string, def int) int { return env(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return env(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	return env(k, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		return strconv.ParseBool(s)
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath gives "/x/y" for "x/y/", and "/" for blank input.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
