package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SCOREMIDI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SCOREMIDI_DB_DSN"
	EnvDBHost = "SCOREMIDI_DB_HOST"
	EnvDBUser = "SCOREMIDI_DB_USER"
	EnvDBName = "SCOREMIDI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	Cron         CronConfig
	Confirm      ConfirmConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCOREMIDI_APP_ENV" required:"true"`
	Port         string `envconfig:"SCOREMIDI_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"SCOREMIDI_APP_BASE_URL"`
	LogLevel     string `envconfig:"SCOREMIDI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCOREMIDI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SCOREMIDI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SCOREMIDI_DB_DSN"`
	Driver string `envconfig:"SCOREMIDI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCOREMIDI_DB_HOST"`
	LegacyPort     int    `envconfig:"SCOREMIDI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCOREMIDI_DB_USER"`
	LegacyPassword string `envconfig:"SCOREMIDI_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCOREMIDI_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCOREMIDI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCOREMIDI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCOREMIDI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCOREMIDI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCOREMIDI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCOREMIDI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SCOREMIDI_REDIS_ADDR"`
	Password     string        `envconfig:"SCOREMIDI_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCOREMIDI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCOREMIDI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCOREMIDI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCOREMIDI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCOREMIDI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCOREMIDI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SCOREMIDI_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SCOREMIDI_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SCOREMIDI_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey              string        `envconfig:"SCOREMIDI_STRIPE_API_KEY"`
	WebhookSecret       string        `envconfig:"SCOREMIDI_STRIPE_WEBHOOK_SECRET"`
	Env                 string        `envconfig:"SCOREMIDI_STRIPE_ENV" default:"test"`
	SubscriptionPriceID string        `envconfig:"SCOREMIDI_STRIPE_SUBSCRIPTION_PRICE_ID"`
	OnetimePriceID      string        `envconfig:"SCOREMIDI_STRIPE_ONETIME_MIDI_PRICE_ID"`
	IdempotencyTTL      time.Duration `envconfig:"SCOREMIDI_STRIPE_EVENT_IDEMPOTENCY_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Subscription upsert conflict keys. The original service flip-flopped
// between user_id and user_id+subscription across revisions, so the key is
// explicit configuration rather than a guess.
const (
	ConflictKeyUser             = "user_id"
	ConflictKeyUserSubscription = "user_id_subscription"
)

type BillingConfig struct {
	SubscriptionConflictKey string `envconfig:"SCOREMIDI_BILLING_SUBSCRIPTION_CONFLICT_KEY" default:"user_id"`
}

func (b BillingConfig) validate() error {
	switch b.SubscriptionConflictKey {
	case ConflictKeyUser, ConflictKeyUserSubscription:
		return nil
	default:
		return fmt.Errorf("subscription conflict key must be %q or %q", ConflictKeyUser, ConflictKeyUserSubscription)
	}
}

type CronConfig struct {
	Secret   string        `envconfig:"SCOREMIDI_CRON_SECRET"`
	Interval time.Duration `envconfig:"SCOREMIDI_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"SCOREMIDI_CRON_LOCK_TTL" default:"25h"`
}

type ConfirmConfig struct {
	PollInterval time.Duration `envconfig:"SCOREMIDI_CONFIRM_POLL_INTERVAL" default:"3s"`
	MaxAttempts  int           `envconfig:"SCOREMIDI_CONFIRM_MAX_ATTEMPTS" default:"40"`
	MaxWait      time.Duration `envconfig:"SCOREMIDI_CONFIRM_MAX_WAIT" default:"2m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SCOREMIDI_AUTO_MIGRATE" default:"false"`
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
