package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App                   AppConfig
	Service               ServiceConfig
	DB                    DBConfig
	Redis                 RedisConfig
	Auth                  AuthConfig
	JWT                   JWTConfig
	GCP                   GCPConfig
	Firebase              FirebaseConfig
	SMTP                  SMTPConfig
	Cache                 CacheConfig
	RegistrationRateLimit RegistrationRateLimitConfig
	Pricing               PricingConfig
	FeatureFlags          FeatureFlagsConfig
	PubSub                PubSubConfig
	Outbox                OutboxConfig
	Cron                  CronConfig
	Worker                WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Auth.validate(cfg.JWT); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"LENSPORTAL_APP_ENV" required:"true"`
	Port            string        `envconfig:"LENSPORTAL_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"LENSPORTAL_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LENSPORTAL_LOG_FORMAT" default:"json"`
	LogWarnStack    bool          `envconfig:"LENSPORTAL_LOG_WARN_STACK" default:"false"`
	ReadTimeout     time.Duration `envconfig:"LENSPORTAL_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"LENSPORTAL_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"LENSPORTAL_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"LENSPORTAL_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LENSPORTAL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LENSPORTAL_DB_DSN"`
	Driver string `envconfig:"LENSPORTAL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LENSPORTAL_DB_HOST"`
	LegacyPort     int    `envconfig:"LENSPORTAL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LENSPORTAL_DB_USER"`
	LegacyPassword string `envconfig:"LENSPORTAL_DB_PASSWORD"`
	LegacyName     string `envconfig:"LENSPORTAL_DB_NAME"`
	LegacySSLMode  string `envconfig:"LENSPORTAL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LENSPORTAL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LENSPORTAL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LENSPORTAL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LENSPORTAL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LENSPORTAL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LENSPORTAL_REDIS_ADDR"`
	Password     string        `envconfig:"LENSPORTAL_REDIS_PASSWORD"`
	DB           int           `envconfig:"LENSPORTAL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LENSPORTAL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LENSPORTAL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LENSPORTAL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LENSPORTAL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LENSPORTAL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode string `envconfig:"LENSPORTAL_AUTH_MODE" default:"firebase"`
	// RevocationTTL bounds how long a suspended account's outstanding tokens stay denied.
	RevocationTTL time.Duration `envconfig:"LENSPORTAL_AUTH_REVOCATION_TTL" default:"2h"`
}

func (a AuthConfig) UsesFirebase() bool {
	return strings.EqualFold(strings.TrimSpace(a.Mode), AuthModeFirebase)
}

func (a AuthConfig) UsesJWT() bool {
	return strings.EqualFold(strings.TrimSpace(a.Mode), AuthModeJWT)
}

func (a AuthConfig) validate(jwt JWTConfig) error {
	switch {
	case a.UsesFirebase():
		return nil
	case a.UsesJWT():
		if jwt.Secret == "" || jwt.Issuer == "" {
			return fmt.Errorf("%s and %s are required when %s=%s", EnvJWTSecret, EnvJWTIssuer, EnvAuthMode, AuthModeJWT)
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvAuthMode, a.Mode)
	}
}

// JWTConfig configures the HS256 verifier used for local development and tests.
type JWTConfig struct {
	Secret            string `envconfig:"LENSPORTAL_JWT_SECRET"`
	Issuer            string `envconfig:"LENSPORTAL_JWT_ISSUER" default:"lensportal"`
	ExpirationMinutes int    `envconfig:"LENSPORTAL_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GCPConfig holds the service account shared by Firebase Auth and Pub/Sub.
type GCPConfig struct {
	ProjectID       string `envconfig:"LENSPORTAL_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"LENSPORTAL_GCP_CREDENTIALS_FILE"`
	CredentialsJSON string `envconfig:"LENSPORTAL_GCP_CREDENTIALS_JSON"`
}

type FirebaseConfig struct {
	ProjectID string `envconfig:"LENSPORTAL_FIREBASE_PROJECT_ID"`
	// PasswordSetupURL is where the password-setup link lands after the provider handles it.
	PasswordSetupURL string `envconfig:"LENSPORTAL_PASSWORD_SETUP_URL" default:"http://localhost:3000/auth/set-password"`
}

// ResolvedProjectID falls back to the shared GCP project when no Firebase
// project is set.
func (f FirebaseConfig) ResolvedProjectID(gcp GCPConfig) string {
	if id := strings.TrimSpace(f.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(gcp.ProjectID)
}

type SMTPConfig struct {
	Host     string `envconfig:"LENSPORTAL_SMTP_HOST"`
	Port     int    `envconfig:"LENSPORTAL_SMTP_PORT" default:"587"`
	Username string `envconfig:"LENSPORTAL_SMTP_USERNAME"`
	Password string `envconfig:"LENSPORTAL_SMTP_PASSWORD"`
	From     string `envconfig:"LENSPORTAL_SMTP_FROM" default:"no-reply@lensportal.local"`
	FromName string `envconfig:"LENSPORTAL_SMTP_FROM_NAME" default:"Lens Portal"`
}

func (s SMTPConfig) Configured() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.From) != ""
}

type CacheConfig struct {
	StaleTime time.Duration `envconfig:"LENSPORTAL_CACHE_STALE_TIME" default:"5m"`
	Enabled   bool          `envconfig:"LENSPORTAL_CACHE_ENABLED" default:"true"`
}

type RegistrationRateLimitConfig struct {
	Window     time.Duration `envconfig:"LENSPORTAL_REGISTRATION_RATE_LIMIT_WINDOW" default:"10m"`
	IPLimit    int           `envconfig:"LENSPORTAL_REGISTRATION_RATE_LIMIT_IP_LIMIT" default:"10"`
	EmailLimit int           `envconfig:"LENSPORTAL_REGISTRATION_RATE_LIMIT_EMAIL_LIMIT" default:"3"`
}

type PricingConfig struct {
	// DefaultDiscountTier seeds UserProfile.discount_tier for newly provisioned clients.
	DefaultDiscountTier float64 `envconfig:"LENSPORTAL_PRICING_DEFAULT_DISCOUNT_TIER" default:"0"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LENSPORTAL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LENSPORTAL_AUTO_MIGRATE" default:"false"`
	// PublicRegistration gates the self-service signup endpoint.
	PublicRegistration bool `envconfig:"LENSPORTAL_FEATURE_PUBLIC_REGISTRATION" default:"true"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"LENSPORTAL_PUBSUB_DOMAIN_TOPIC" default:"lensportal-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LENSPORTAL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LENSPORTAL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LENSPORTAL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"LENSPORTAL_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LENSPORTAL_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LENSPORTAL_CRON_LOCK_TTL" default:"55m"`
}

// WorkerConfig applies to the background binaries. An empty MetricsAddr
// disables their scrape listener.
type WorkerConfig struct {
	MetricsAddr string `envconfig:"LENSPORTAL_WORKER_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
