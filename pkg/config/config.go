package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Paystack     PaystackConfig
	Courier      CourierConfig
	Commission   CommissionConfig
	GCS          GCSConfig
	Sendgrid     SendgridConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REBOOKED_APP_ENV" required:"true"`
	Port         string `envconfig:"REBOOKED_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"REBOOKED_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REBOOKED_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"REBOOKED_DB_DSN"`
	Driver string `envconfig:"REBOOKED_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"REBOOKED_DB_HOST"`
	Port     int    `envconfig:"REBOOKED_DB_PORT" default:"5432"`
	User     string `envconfig:"REBOOKED_DB_USER"`
	Password string `envconfig:"REBOOKED_DB_PASSWORD"`
	Name     string `envconfig:"REBOOKED_DB_NAME"`
	SSLMode  string `envconfig:"REBOOKED_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REBOOKED_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REBOOKED_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REBOOKED_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REBOOKED_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REBOOKED_REDIS_URL"`
	Address      string        `envconfig:"REBOOKED_REDIS_ADDR"`
	Password     string        `envconfig:"REBOOKED_REDIS_PASSWORD"`
	DB           int           `envconfig:"REBOOKED_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REBOOKED_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REBOOKED_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REBOOKED_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REBOOKED_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REBOOKED_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaystackConfig carries the payment gateway credentials. The webhook secret
// signs inbound event bodies; the secret key authorizes outbound API calls.
type PaystackConfig struct {
	SecretKey        string        `envconfig:"REBOOKED_PAYSTACK_SECRET_KEY" required:"true"`
	WebhookSecret    string        `envconfig:"REBOOKED_PAYSTACK_WEBHOOK_SECRET" required:"true"`
	BaseURL          string        `envconfig:"REBOOKED_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	RequestTimeout   time.Duration `envconfig:"REBOOKED_PAYSTACK_TIMEOUT" default:"15s"`
	WebhookDedupeTTL time.Duration `envconfig:"REBOOKED_PAYSTACK_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

// CourierConfig configures both pickup providers. Providers are attempted in
// priority order; BookingTimeout bounds each individual attempt.
type CourierConfig struct {
	CourierGuyAPIKey  string        `envconfig:"REBOOKED_COURIER_GUY_API_KEY"`
	CourierGuyBaseURL string        `envconfig:"REBOOKED_COURIER_GUY_BASE_URL" default:"https://api.shiplogic.com"`
	FastwayAPIKey     string        `envconfig:"REBOOKED_FASTWAY_API_KEY"`
	FastwayBaseURL    string        `envconfig:"REBOOKED_FASTWAY_BASE_URL" default:"https://api.fastway.org"`
	BookingTimeout    time.Duration `envconfig:"REBOOKED_COURIER_BOOKING_TIMEOUT" default:"10s"`
	LabelTimeout      time.Duration `envconfig:"REBOOKED_COURIER_LABEL_TIMEOUT" default:"15s"`
	ParcelWeightKg    float64       `envconfig:"REBOOKED_COURIER_DEFAULT_WEIGHT_KG" default:"2"`
}

// CommissionConfig drives payout math. Rates are expressed as decimal strings
// so operators can set e.g. "0.1" without float drift.
type CommissionConfig struct {
	BookCommissionRate       string `envconfig:"REBOOKED_BOOK_COMMISSION_RATE" default:"0.10"`
	DeliveryFeeRetentionRate string `envconfig:"REBOOKED_DELIVERY_FEE_RETENTION_RATE" default:"1.00"`
	MinimumPayoutCents       int64  `envconfig:"REBOOKED_MINIMUM_PAYOUT_CENTS" default:"5000"`
}

type GCSConfig struct {
	BucketName      string `envconfig:"REBOOKED_GCS_BUCKET_NAME"`
	CredentialsJSON string `envconfig:"REBOOKED_GCP_CREDENTIALS_JSON"`
	LabelPrefix     string `envconfig:"REBOOKED_GCS_LABEL_PREFIX" default:"shipping-labels"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"REBOOKED_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"REBOOKED_SENDGRID_FROM_EMAIL" default:"orders@rebooked.co.za"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REBOOKED_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"REBOOKED_DB_HOST": db.Host,
		"REBOOKED_DB_USER": db.User,
		"REBOOKED_DB_NAME": db.Name,
	}
	for _, key := range []string{"REBOOKED_DB_HOST", "REBOOKED_DB_USER", "REBOOKED_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either REBOOKED_DB_DSN or %s are required", strings.Join(missing, ", "))
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
