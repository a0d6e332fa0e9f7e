package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/order-service/pkg/config"
	"github.com/utafrali/order-service/pkg/database"
	"github.com/utafrali/order-service/pkg/resilience"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// External client modes.
const (
	ClientModeHTTP = "http"
	ClientModeStub = "stub"
)

// Config holds all configuration for the order service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ORDER_HTTP_PORT" envDefault:"8004"`

	// Order store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"orders"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"orders_secret"`
	PostgresDB            string `env:"ORDER_DB_NAME" envDefault:"order_db"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int    `env:"LOG_SLOW_QUERY_MS" envDefault:"0"`

	// Redis order cache; an empty host disables it.
	RedisHost     string        `env:"REDIS_HOST"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"ORDER_CACHE_TTL" envDefault:"5m"`

	// Kafka; no brokers disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// External services
	ClientMode        string `env:"EXTERNAL_CLIENT_MODE" envDefault:"http"`
	MemberServiceURL  string `env:"MEMBER_SERVICE_URL" envDefault:"http://localhost:8081"`
	ProductServiceURL string `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8082"`
	PaymentServiceURL string `env:"PAYMENT_SERVICE_URL" envDefault:"http://localhost:8083"`

	ClientTimeout         time.Duration `env:"CLIENT_TIMEOUT" envDefault:"5s"`
	ClientMaxAttempts     int           `env:"CLIENT_MAX_ATTEMPTS" envDefault:"3"`
	ClientRetryWaitMin    time.Duration `env:"CLIENT_RETRY_WAIT_MIN" envDefault:"200ms"`
	ClientRetryWaitMax    time.Duration `env:"CLIENT_RETRY_WAIT_MAX" envDefault:"2s"`
	ClientFallbackEnabled bool          `env:"CLIENT_FALLBACK_ENABLED" envDefault:"true"`

	// Circuit breaker
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"10"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Pprof
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load order config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from the given key/value set.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load order config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects inconsistent settings.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{StoreDriverPostgres, StoreDriverMemory}, c.StoreDriver) {
		return fmt.Errorf("invalid STORE_DRIVER %q: must be %s or %s", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}
	if !slices.Contains([]string{ClientModeHTTP, ClientModeStub}, c.ClientMode) {
		return fmt.Errorf("invalid EXTERNAL_CLIENT_MODE %q: must be %s or %s", c.ClientMode, ClientModeHTTP, ClientModeStub)
	}
	if c.ClientMode == ClientModeHTTP {
		for name, url := range map[string]string{
			"MEMBER_SERVICE_URL":  c.MemberServiceURL,
			"PRODUCT_SERVICE_URL": c.ProductServiceURL,
			"PAYMENT_SERVICE_URL": c.PaymentServiceURL,
		} {
			if url == "" {
				return fmt.Errorf("%s is required when EXTERNAL_CLIENT_MODE is %s", name, ClientModeHTTP)
			}
		}
	}
	if c.ClientMaxAttempts < 1 {
		return fmt.Errorf("CLIENT_MAX_ATTEMPTS must be at least 1, got %d", c.ClientMaxAttempts)
	}
	if c.ClientRetryWaitMax < c.ClientRetryWaitMin {
		return fmt.Errorf("CLIENT_RETRY_WAIT_MAX (%s) is less than CLIENT_RETRY_WAIT_MIN (%s)", c.ClientRetryWaitMax, c.ClientRetryWaitMin)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be in [0, 1], got %v", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the cache connection settings.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// CacheEnabled reports whether a Redis host is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisHost != ""
}

// EventsEnabled reports whether Kafka brokers are configured.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Resilience returns the retry and breaker policy for the named dependency.
func (c *Config) Resilience(name string) resilience.Config {
	return resilience.Config{
		Name:           name,
		MaxAttempts:    c.ClientMaxAttempts,
		InitialBackoff: c.ClientRetryWaitMin,
		MaxBackoff:     c.ClientRetryWaitMax,
		FailureRatio:   c.CBFailureRatio,
		MinRequests:    c.CBMinRequests,
		MaxRequests:    c.CBMaxRequests,
		Interval:       c.CBInterval,
		OpenTimeout:    c.CBTimeout,
	}
}
