package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "notelay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "NOTELAY_DB_DSN"
	EnvDBHost = "NOTELAY_DB_HOST"
	EnvDBUser = "NOTELAY_DB_USER"
	EnvDBName = "NOTELAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Mollie    MollieConfig
	Checkout  CheckoutConfig
	Reconcile ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NOTELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"NOTELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NOTELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NOTELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NOTELAY_DB_DSN"`
	Driver string `envconfig:"NOTELAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NOTELAY_DB_HOST"`
	LegacyPort     int    `envconfig:"NOTELAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NOTELAY_DB_USER"`
	LegacyPassword string `envconfig:"NOTELAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"NOTELAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"NOTELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NOTELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NOTELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NOTELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NOTELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NOTELAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NOTELAY_REDIS_ADDR"`
	Password     string        `envconfig:"NOTELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"NOTELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NOTELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NOTELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NOTELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NOTELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NOTELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NOTELAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NOTELAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NOTELAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type MollieConfig struct {
	APIKey      string `envconfig:"NOTELAY_MOLLIE_API_KEY"`
	BaseURL     string `envconfig:"NOTELAY_MOLLIE_BASE_URL" default:"https://api.mollie.com/v2"`
	RedirectURL string `envconfig:"NOTELAY_MOLLIE_REDIRECT_URL"`
	WebhookURL  string `envconfig:"NOTELAY_MOLLIE_WEBHOOK_URL"`
	Env         string `envconfig:"NOTELAY_MOLLIE_ENV" default:"test"`
}

// Environment returns the normalized processor environment (test/live).
func (m MollieConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(m.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CheckoutConfig is the upgrade product as presented to the processor.
type CheckoutConfig struct {
	PriceValue    string `envconfig:"NOTELAY_CHECKOUT_PRICE_VALUE" default:"9.00"`
	PriceCurrency string `envconfig:"NOTELAY_CHECKOUT_PRICE_CURRENCY" default:"EUR"`
	Description   string `envconfig:"NOTELAY_CHECKOUT_DESCRIPTION" default:"Notelay Pro upgrade"`
}

// ReconcileConfig bounds the retrying channels. Delays are fixed (no jitter):
// a stalled upstream must never be hammered in a tight loop.
type ReconcileConfig struct {
	PollAttempts     int           `envconfig:"NOTELAY_RECONCILE_POLL_ATTEMPTS" default:"5"`
	PollDelay        time.Duration `envconfig:"NOTELAY_RECONCILE_POLL_DELAY" default:"2s"`
	LinkAttempts     int           `envconfig:"NOTELAY_RECONCILE_LINK_ATTEMPTS" default:"3"`
	LinkDelay        time.Duration `envconfig:"NOTELAY_RECONCILE_LINK_DELAY" default:"1s"`
	MaxAttempts      int           `envconfig:"NOTELAY_RECONCILE_MAX_ATTEMPTS" default:"6"`
	HandoffTTL       time.Duration `envconfig:"NOTELAY_RECONCILE_HANDOFF_TTL" default:"30m"`
	WebhookGuardTTL  time.Duration `envconfig:"NOTELAY_RECONCILE_WEBHOOK_GUARD_TTL" default:"24h"`
	UpgradedTierName string        `envconfig:"NOTELAY_RECONCILE_UPGRADED_TIER" default:"pro"`
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
