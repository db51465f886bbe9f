package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Stripe        StripeConfig
	Webhook       WebhookConfig
	RateLimit     RateLimitConfig
	Auction       AuctionConfig
	Notifications NotificationsConfig
	Outbox        OutboxConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BIDHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"BIDHOUSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BIDHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIDHOUSE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"BIDHOUSE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, AppEnvLocal)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"BIDHOUSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BIDHOUSE_DB_DSN"`
	Driver string `envconfig:"BIDHOUSE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BIDHOUSE_DB_HOST"`
	Port     int    `envconfig:"BIDHOUSE_DB_PORT" default:"5432"`
	User     string `envconfig:"BIDHOUSE_DB_USER"`
	Password string `envconfig:"BIDHOUSE_DB_PASSWORD"`
	Name     string `envconfig:"BIDHOUSE_DB_NAME"`
	SSLMode  string `envconfig:"BIDHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIDHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIDHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIDHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIDHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIDHOUSE_REDIS_URL" required:"true"`
	Password     string        `envconfig:"BIDHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIDHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIDHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIDHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIDHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIDHOUSE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"BIDHOUSE_REDIS_WRITE_TIMEOUT" default:"3s"`
	// IdempotencyTTL bounds how long Idempotency-Key responses are replayed.
	IdempotencyTTL time.Duration `envconfig:"BIDHOUSE_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// JWTConfig verifies bearer tokens minted by the session provider.
type JWTConfig struct {
	Secret string        `envconfig:"BIDHOUSE_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"BIDHOUSE_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"BIDHOUSE_JWT_LEEWAY" default:"30s"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"BIDHOUSE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"BIDHOUSE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"BIDHOUSE_STRIPE_ENV" default:"test"`
	Currency      string `envconfig:"BIDHOUSE_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type WebhookConfig struct {
	StaleTolerance  time.Duration `envconfig:"BIDHOUSE_WEBHOOK_STALE_TOLERANCE" default:"5m"`
	FutureTolerance time.Duration `envconfig:"BIDHOUSE_WEBHOOK_FUTURE_TOLERANCE" default:"3m"`
	MaxBodyBytes    int64         `envconfig:"BIDHOUSE_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type RateLimitConfig struct {
	Backend     string        `envconfig:"BIDHOUSE_RATE_LIMIT_BACKEND" default:"memory"`
	Window      time.Duration `envconfig:"BIDHOUSE_RATE_LIMIT_WINDOW" default:"1m"`
	BidLimit    int           `envconfig:"BIDHOUSE_RATE_LIMIT_BIDS" default:"20"`
	ActionLimit int           `envconfig:"BIDHOUSE_RATE_LIMIT_ORDER_ACTIONS" default:"30"`
	// IP token bucket for the public surface.
	IPRatePerSecond float64 `envconfig:"BIDHOUSE_RATE_LIMIT_IP_RPS" default:"20"`
	IPBurst         int     `envconfig:"BIDHOUSE_RATE_LIMIT_IP_BURST" default:"40"`
}

func (r RateLimitConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(r.Backend)) {
	case "", RateLimitBackendMemory, RateLimitBackendRedis:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvRateLimitBackend, RateLimitBackendMemory, RateLimitBackendRedis)
	}
}

type AuctionConfig struct {
	CloseInterval      time.Duration `envconfig:"BIDHOUSE_AUCTION_CLOSE_INTERVAL" default:"1m"`
	CloseBatchSize     int           `envconfig:"BIDHOUSE_AUCTION_CLOSE_BATCH_SIZE" default:"100"`
	DisputeWindow      time.Duration `envconfig:"BIDHOUSE_AUCTION_DISPUTE_WINDOW" default:"72h"`
	CompletionInterval time.Duration `envconfig:"BIDHOUSE_AUCTION_COMPLETION_INTERVAL" default:"15m"`
}

type NotificationsConfig struct {
	Retention       time.Duration `envconfig:"BIDHOUSE_NOTIFICATIONS_RETENTION" default:"720h"`
	CleanupInterval time.Duration `envconfig:"BIDHOUSE_NOTIFICATIONS_CLEANUP_INTERVAL" default:"24h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BIDHOUSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BIDHOUSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BIDHOUSE_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention         time.Duration `envconfig:"BIDHOUSE_OUTBOX_RETENTION" default:"720h"`
	RetentionInterval time.Duration `envconfig:"BIDHOUSE_OUTBOX_RETENTION_INTERVAL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BIDHOUSE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"BIDHOUSE_PUBSUB_ORDERS_TOPIC" default:"bidhouse-order-events"`
	ListingsTopic string `envconfig:"BIDHOUSE_PUBSUB_LISTINGS_TOPIC" default:"bidhouse-listing-events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BIDHOUSE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
