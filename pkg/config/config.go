package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BISTRO_APP_ENV" required:"true"`
	Port         string `envconfig:"BISTRO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BISTRO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BISTRO_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"BISTRO_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BISTRO_SERVICE_KIND" default:"api"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN        string `envconfig:"BISTRO_DB_DSN"`
	Driver     string `envconfig:"BISTRO_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"BISTRO_SQLITE_PATH" default:"bistro.db"`

	LegacyHost     string `envconfig:"BISTRO_DB_HOST"`
	LegacyPort     int    `envconfig:"BISTRO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BISTRO_DB_USER"`
	LegacyPassword string `envconfig:"BISTRO_DB_PASSWORD"`
	LegacyName     string `envconfig:"BISTRO_DB_NAME"`
	LegacySSLMode  string `envconfig:"BISTRO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BISTRO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BISTRO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BISTRO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BISTRO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the embedded driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BISTRO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BISTRO_REDIS_ADDR"`
	Password     string        `envconfig:"BISTRO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BISTRO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BISTRO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BISTRO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BISTRO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BISTRO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BISTRO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BISTRO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BISTRO_AUTO_MIGRATE" default:"false"`
}

// InventoryConfig carries the stock policy defaults.
type InventoryConfig struct {
	DefaultLowStockAlert int    `envconfig:"BISTRO_INVENTORY_DEFAULT_LOW_STOCK_ALERT" default:"5"`
	HistoryDefaultLimit  int    `envconfig:"BISTRO_INVENTORY_HISTORY_DEFAULT_LIMIT" default:"20"`
	HistoryMaxLimit      int    `envconfig:"BISTRO_INVENTORY_HISTORY_MAX_LIMIT" default:"100"`
	DailyResetReason     string `envconfig:"BISTRO_INVENTORY_DAILY_RESET_REASON" default:"Begin of the day"`
}

func (i InventoryConfig) validate() error {
	if i.DefaultLowStockAlert < 0 {
		return fmt.Errorf("%s must be non-negative", EnvDefaultLowStockAlert)
	}
	if i.HistoryDefaultLimit <= 0 || i.HistoryMaxLimit <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvHistoryDefaultLimit, EnvHistoryMaxLimit)
	}
	if i.HistoryDefaultLimit > i.HistoryMaxLimit {
		return fmt.Errorf("%s cannot exceed %s", EnvHistoryDefaultLimit, EnvHistoryMaxLimit)
	}
	if strings.TrimSpace(i.DailyResetReason) == "" {
		return fmt.Errorf("%s cannot be blank", EnvDailyResetReason)
	}
	return nil
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"BISTRO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"BISTRO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"BISTRO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	ChannelPrefix  string `envconfig:"BISTRO_OUTBOX_CHANNEL_PREFIX" default:"bistro:events"`
	RetentionDays  int    `envconfig:"BISTRO_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BISTRO_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"BISTRO_CRON_LOCK_TTL" default:"4m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
