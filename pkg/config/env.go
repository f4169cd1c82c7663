package config

// EnvPrefix is empty because every field carries its fully qualified name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

const (
	EnvAppEnv    = "LENSPORTAL_APP_ENV"
	EnvPort      = "LENSPORTAL_APP_PORT"
	EnvLogLevel  = "LENSPORTAL_LOG_LEVEL"
	EnvDBDSN     = "LENSPORTAL_DB_DSN"
	EnvDBHost    = "LENSPORTAL_DB_HOST"
	EnvDBUser    = "LENSPORTAL_DB_USER"
	EnvDBName    = "LENSPORTAL_DB_NAME"
	EnvRedisURL  = "LENSPORTAL_REDIS_URL"
	EnvAuthMode  = "LENSPORTAL_AUTH_MODE"
	EnvJWTSecret = "LENSPORTAL_JWT_SECRET"
	EnvJWTIssuer = "LENSPORTAL_JWT_ISSUER"

	EnvFirebaseProjectID = "LENSPORTAL_FIREBASE_PROJECT_ID"
	EnvSMTPHost          = "LENSPORTAL_SMTP_HOST"
	EnvCacheStaleTime    = "LENSPORTAL_CACHE_STALE_TIME"
	EnvPubSubDomainTopic = "LENSPORTAL_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
