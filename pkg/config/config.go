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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Payment       PaymentConfig
	Shipping      ShippingConfig
	Withdrawal    WithdrawalConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env          string `envconfig:"LOKABEKAS_APP_ENV" required:"true"`
	Port         string `envconfig:"LOKABEKAS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOKABEKAS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOKABEKAS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LOKABEKAS_DB_DSN"`
	Driver string `envconfig:"LOKABEKAS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOKABEKAS_DB_HOST"`
	LegacyPort     int    `envconfig:"LOKABEKAS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOKABEKAS_DB_USER"`
	LegacyPassword string `envconfig:"LOKABEKAS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOKABEKAS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOKABEKAS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOKABEKAS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOKABEKAS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOKABEKAS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOKABEKAS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOKABEKAS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOKABEKAS_REDIS_ADDR"`
	Password     string        `envconfig:"LOKABEKAS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOKABEKAS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOKABEKAS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOKABEKAS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOKABEKAS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOKABEKAS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOKABEKAS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LOKABEKAS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LOKABEKAS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LOKABEKAS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOKABEKAS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LOKABEKAS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LOKABEKAS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LOKABEKAS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOKABEKAS_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOKABEKAS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOKABEKAS_AUTO_MIGRATE" default:"false"`
}

// PaymentConfig carries the payment gateway credentials plus the platform
// charges applied at checkout.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LOKABEKAS_AUTH_RL_LOGIN_WINDOW" default:"5m"`
	LoginIPLimit       int           `envconfig:"LOKABEKAS_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"LOKABEKAS_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"8"`
	RegisterWindow     time.Duration `envconfig:"LOKABEKAS_AUTH_RL_REGISTER_WINDOW" default:"15m"`
	RegisterIPLimit    int           `envconfig:"LOKABEKAS_AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"LOKABEKAS_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"3"`
}

type PaymentConfig struct {
	BaseURL        string        `envconfig:"LOKABEKAS_PAYMENT_BASE_URL" required:"true"`
	ServerKey      string        `envconfig:"LOKABEKAS_PAYMENT_SERVER_KEY" required:"true"`
	ClientKey      string        `envconfig:"LOKABEKAS_PAYMENT_CLIENT_KEY"`
	AdminFeeIDR    int64         `envconfig:"LOKABEKAS_PAYMENT_ADMIN_FEE_IDR" default:"5000"`
	InvoiceTTL     time.Duration `envconfig:"LOKABEKAS_PAYMENT_INVOICE_TTL" default:"24h"`
	RequestTimeout time.Duration `envconfig:"LOKABEKAS_PAYMENT_REQUEST_TIMEOUT" default:"15s"`
}

type ShippingConfig struct {
	BaseURL          string        `envconfig:"LOKABEKAS_SHIPPING_BASE_URL" required:"true"`
	APIKey           string        `envconfig:"LOKABEKAS_SHIPPING_API_KEY" required:"true"`
	OriginPostalCode string        `envconfig:"LOKABEKAS_SHIPPING_ORIGIN_POSTAL_CODE"`
	RequestTimeout   time.Duration `envconfig:"LOKABEKAS_SHIPPING_REQUEST_TIMEOUT" default:"10s"`
}

type WithdrawalConfig struct {
	MinimumAmountIDR int64 `envconfig:"LOKABEKAS_WITHDRAWAL_MINIMUM_IDR" default:"50000"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LOKABEKAS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LOKABEKAS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LOKABEKAS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"LOKABEKAS_GCS_BUCKET_NAME"`
	UploadURLExpiry   time.Duration `envconfig:"LOKABEKAS_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"LOKABEKAS_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"LOKABEKAS_PUBSUB_ORDERS_TOPIC" default:"lb-order-events"`
	OrdersSubscription string `envconfig:"LOKABEKAS_PUBSUB_ORDERS_SUBSCRIPTION"`
	PayoutTopic        string `envconfig:"LOKABEKAS_PUBSUB_PAYOUT_TOPIC" default:"lb-payout-events"`
	PayoutSubscription string `envconfig:"LOKABEKAS_PUBSUB_PAYOUT_SUBSCRIPTION"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"LOKABEKAS_CRON_INTERVAL" default:"5m"`
	LockTTL              time.Duration `envconfig:"LOKABEKAS_CRON_LOCK_TTL" default:"10m"`
	InvoiceSweepBatch    int           `envconfig:"LOKABEKAS_CRON_INVOICE_SWEEP_BATCH" default:"200"`
	OutboxRetentionDays  int           `envconfig:"LOKABEKAS_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	OutboxRetentionBatch int           `envconfig:"LOKABEKAS_CRON_OUTBOX_RETENTION_BATCH" default:"500"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LOKABEKAS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LOKABEKAS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LOKABEKAS_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
