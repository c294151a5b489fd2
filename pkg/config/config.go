package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CRUSTO"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "CRUSTO_APP_ENV"
	EnvPort     = "CRUSTO_APP_PORT"
	EnvDBDSN    = "CRUSTO_DB_DSN"
	EnvDBHost   = "CRUSTO_DB_HOST"
	EnvDBUser   = "CRUSTO_DB_USER"
	EnvDBName   = "CRUSTO_DB_NAME"
	EnvRedisURL = "CRUSTO_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Queue        QueueConfig
	Alerts       AlertsConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"CRUSTO_APP_ENV" required:"true"`
	Port         string `envconfig:"CRUSTO_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"CRUSTO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRUSTO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CRUSTO_SERVICE_KIND" default:"worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"CRUSTO_DB_DSN"`
	Driver string `envconfig:"CRUSTO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRUSTO_DB_HOST"`
	LegacyPort     int    `envconfig:"CRUSTO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRUSTO_DB_USER"`
	LegacyPassword string `envconfig:"CRUSTO_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRUSTO_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRUSTO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRUSTO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRUSTO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRUSTO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRUSTO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRUSTO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRUSTO_REDIS_ADDR"`
	Password     string        `envconfig:"CRUSTO_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRUSTO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRUSTO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRUSTO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRUSTO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRUSTO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRUSTO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// QueueConfig sizes the invalidation queues and their retry policy.
type QueueConfig struct {
	Concurrency    int           `envconfig:"CRUSTO_QUEUE_CONCURRENCY" default:"5"`
	MaxAttempts    int           `envconfig:"CRUSTO_QUEUE_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"CRUSTO_QUEUE_INITIAL_BACKOFF" default:"5s"`
	PollInterval   time.Duration `envconfig:"CRUSTO_QUEUE_POLL_INTERVAL" default:"500ms"`
	BatchSize      int           `envconfig:"CRUSTO_QUEUE_BATCH_SIZE" default:"25"`
}

// AlertsConfig controls the low-stock admin notification.
type AlertsConfig struct {
	LowStockThreshold int `envconfig:"CRUSTO_ALERTS_LOW_STOCK_THRESHOLD" default:"10"`
}

// CronConfig paces the scheduled maintenance worker.
type CronConfig struct {
	Interval               time.Duration `envconfig:"CRUSTO_CRON_INTERVAL" default:"24h"`
	LockTTL                time.Duration `envconfig:"CRUSTO_CRON_LOCK_TTL" default:"23h"`
	FailedJobRetentionDays int           `envconfig:"CRUSTO_CRON_FAILED_JOB_RETENTION_DAYS" default:"7"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CRUSTO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CRUSTO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CRUSTO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AlertsTopic string `envconfig:"CRUSTO_PUBSUB_ALERTS_TOPIC" default:"crusto-admin-alerts"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRUSTO_AUTO_MIGRATE" default:"false"`
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
