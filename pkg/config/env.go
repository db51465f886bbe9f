package config

// EnvPrefix is handed to envconfig; every field also carries its absolute name.
const EnvPrefix = "BIDHOUSE"

const (
	AppEnvDev   = "dev"
	AppEnvProd  = "prod"
	AppEnvLocal = "local"
)

const (
	EnvAppEnv     = "BIDHOUSE_APP_ENV"
	EnvPort       = "BIDHOUSE_APP_PORT"
	EnvDBDSN      = "BIDHOUSE_DB_DSN"
	EnvDBHost     = "BIDHOUSE_DB_HOST"
	EnvDBUser     = "BIDHOUSE_DB_USER"
	EnvDBName     = "BIDHOUSE_DB_NAME"
	EnvRedisURL   = "BIDHOUSE_REDIS_URL"
	EnvJWTSecret  = "BIDHOUSE_JWT_SECRET"
	EnvJWTIssuer  = "BIDHOUSE_JWT_ISSUER"
	EnvStripeKey  = "BIDHOUSE_STRIPE_API_KEY"
	EnvStripeHook = "BIDHOUSE_STRIPE_WEBHOOK_SECRET"

	EnvWebhookStaleTolerance  = "BIDHOUSE_WEBHOOK_STALE_TOLERANCE"
	EnvWebhookFutureTolerance = "BIDHOUSE_WEBHOOK_FUTURE_TOLERANCE"
	EnvRateLimitBackend       = "BIDHOUSE_RATE_LIMIT_BACKEND"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
