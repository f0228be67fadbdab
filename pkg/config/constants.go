package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "BISTRO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "BISTRO_APP_ENV"
	EnvPort         = "BISTRO_APP_PORT"
	EnvLogLevel     = "BISTRO_LOG_LEVEL"
	EnvLogWarnStack = "BISTRO_LOG_WARN_STACK"
	EnvCORSOrigins  = "BISTRO_CORS_ORIGINS"
	EnvServiceKind  = "BISTRO_SERVICE_KIND"

	EnvDBDSN      = "BISTRO_DB_DSN"
	EnvDBDriver   = "BISTRO_DB_DRIVER"
	EnvDBHost     = "BISTRO_DB_HOST"
	EnvDBPort     = "BISTRO_DB_PORT"
	EnvDBUser     = "BISTRO_DB_USER"
	EnvDBPassword = "BISTRO_DB_PASSWORD"
	EnvDBName     = "BISTRO_DB_NAME"
	EnvDBSSLMode  = "BISTRO_DB_SSLMODE"
	EnvSQLitePath = "BISTRO_SQLITE_PATH"

	EnvRedisURL = "BISTRO_REDIS_URL"

	EnvUseSQLite   = "BISTRO_USE_SQLITE"
	EnvAutoMigrate = "BISTRO_AUTO_MIGRATE"

	EnvDefaultLowStockAlert = "BISTRO_INVENTORY_DEFAULT_LOW_STOCK_ALERT"
	EnvHistoryDefaultLimit  = "BISTRO_INVENTORY_HISTORY_DEFAULT_LIMIT"
	EnvHistoryMaxLimit      = "BISTRO_INVENTORY_HISTORY_MAX_LIMIT"
	EnvDailyResetReason     = "BISTRO_INVENTORY_DAILY_RESET_REASON"

	EnvOutboxBatchSize     = "BISTRO_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollMS        = "BISTRO_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts   = "BISTRO_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxChannelPrefix = "BISTRO_OUTBOX_CHANNEL_PREFIX"
	EnvOutboxRetentionDays = "BISTRO_OUTBOX_RETENTION_DAYS"

	EnvCronInterval = "BISTRO_CRON_INTERVAL"
	EnvCronLockTTL  = "BISTRO_CRON_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
