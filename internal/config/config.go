package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ErrMissingSecret marks a required secret that was not provided.
var ErrMissingSecret = errors.New("required secret is not configured")

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Billing       BillingConfig
	Mail          MailConfig
	Destinations  DestinationsConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	PublicURL       string // externally reachable base URL of this API
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	TrialSweepEvery time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string // postgres, memory
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// RedisConfig holds the shared store used for one-time codes. Empty Addr
// keeps codes in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	// OTLPMetricsEndpoint is the collector URL for metrics. Empty defers to
	// the OTEL_EXPORTER_OTLP_* environment variables.
	OTLPMetricsEndpoint string
	MetricsInterval     time.Duration
	SamplingRate        float64
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory       uint32
	Argon2Iterations   uint32
	Argon2Parallelism  uint8
	Argon2SaltLength   uint32
	Argon2KeyLength    uint32
	LockoutMaxAttempts int
	LockoutDuration    time.Duration
	JWTSecret          string
	TokenIssuer        string
	UserTokenTTL       time.Duration
	OperatorTokenTTL   time.Duration
	ExchangeCodeTTL    time.Duration
	OperatorEmail      string
	OperatorPassword   string
	OperatorName       string
}

// BillingConfig holds payment gateway settings and prices
type BillingConfig struct {
	GatewayBaseURL     string
	GatewayAccessToken string
	GatewayPublicKey   string
	WebhookSecret      string
	GatewayTimeout     time.Duration
	GatewayRetries     int
	WebhookTimeout     time.Duration
	MonthlyPrice       decimal.Decimal
	ExtensionPrice     decimal.Decimal
	UpgradePrice       decimal.Decimal
	StatementName      string
}

// MailConfig holds SMTP settings. Empty Host disables delivery.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string // front-end base URL used in email links
}

// DestinationsConfig holds the product URLs users are sent to after sign-in
type DestinationsConfig struct {
	Home     string
	Commerce string
	Industry string
	Services string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "5000"),
			PublicURL:       getEnv("API_BASE_URL", ""),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
			TrialSweepEvery: parseDuration("TRIAL_SWEEP_INTERVAL", "1h"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("STORE", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "fluxoclean"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "fluxoclean"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
			QueryTimeout:    parseDuration("DB_QUERY_TIMEOUT", "5s"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:            getEnv("LOG_LEVEL", "info"),
			LogFormat:           getEnv("LOG_FORMAT", "json"),
			OTELEnabled:         parseBool("OTEL_ENABLED", false),
			ServiceName:         getEnv("OTEL_SERVICE_NAME", "fluxoclean-controlplane"),
			ServiceVersion:      getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
			Environment:         getEnv("APP_ENV", "development"),
			OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
			SamplingRate:        parseFloat("OTEL_SAMPLING_RATE", 1.0),
			OTLPMetricsEndpoint: getEnv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ""),
			MetricsInterval:     parseDuration("METRICS_EXPORT_INTERVAL", "30s"),
		},
		Security: SecurityConfig{
			Argon2Memory:       uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:   uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism:  uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:   uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:    uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
			LockoutMaxAttempts: parseInt("SECURITY_LOCKOUT_MAX_ATTEMPTS", 5),
			LockoutDuration:    parseDuration("SECURITY_LOCKOUT_DURATION", "15m"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			TokenIssuer:        getEnv("JWT_ISSUER", "fluxoclean"),
			UserTokenTTL:       parseDuration("JWT_USER_TTL", "24h"),
			OperatorTokenTTL:   parseDuration("JWT_OPERATOR_TTL", "4h"),
			ExchangeCodeTTL:    parseDuration("EXCHANGE_CODE_TTL", "60s"),
			OperatorEmail:      getEnv("OPERATOR_EMAIL", ""),
			OperatorPassword:   getEnv("OPERATOR_PASSWORD", ""),
			OperatorName:       getEnv("OPERATOR_NAME", "Platform Operator"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Billing: BillingConfig{
			GatewayBaseURL:     getEnv("MP_BASE_URL", "https://api.mercadopago.com"),
			GatewayAccessToken: getEnv("MP_ACCESS_TOKEN", ""),
			GatewayPublicKey:   getEnv("MP_PUBLIC_KEY", ""),
			WebhookSecret:      getEnv("MP_WEBHOOK_SECRET", ""),
			GatewayTimeout:     parseDuration("MP_TIMEOUT", "10s"),
			GatewayRetries:     parseInt("MP_RETRIES", 2),
			WebhookTimeout:     parseDuration("WEBHOOK_PROCESS_TIMEOUT", "30s"),
			MonthlyPrice:       parseDecimal("PRICE_MONTHLY", "197.00"),
			ExtensionPrice:     parseDecimal("PRICE_EXTENSION", "97.00"),
			UpgradePrice:       parseDecimal("PRICE_UPGRADE", "197.00"),
			StatementName:      getEnv("BILLING_STATEMENT_NAME", "FLUXOCLEAN"),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     parseInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", "FluxoClean <no-reply@fluxoclean.com.br>"),
			AppURL:   getEnv("APP_URL", "http://localhost:3000"),
		},
		Destinations: DestinationsConfig{
			Home:     getEnv("FLUXOCLEAN_HOME", "http://localhost:3000"),
			Commerce: getEnv("SMART_STORE", ""),
			Industry: getEnv("SMART_INDUSTRY", ""),
			Services: getEnv("SMART_SERVICE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingSecret)
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("%w: DB_PASSWORD", ErrMissingSecret)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE %q", c.Database.Driver)
	}
	for name, price := range map[string]decimal.Decimal{
		"PRICE_MONTHLY":   c.Billing.MonthlyPrice,
		"PRICE_EXTENSION": c.Billing.ExtensionPrice,
		"PRICE_UPGRADE":   c.Billing.UpgradePrice,
	} {
		if !price.IsPositive() {
			return fmt.Errorf("%s must be a positive amount", name)
		}
	}
	return nil
}

// GatewayEnabled reports whether checkout creation and payment lookups can
// run. Both the gateway token and the public API URL are needed.
func (c *Config) GatewayEnabled() bool {
	return c.Billing.GatewayAccessToken != "" && c.Server.PublicURL != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

// parseDecimal yields zero on malformed input so Validate can reject it.
func parseDecimal(key string, defaultValue string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero
	}
	return d
}
