package config

const EnvPrefix = "PACKETS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverMemory = "memory"
	StorageDriverRedis  = "redis"
	StorageDriverSQL    = "sql"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Environment variable names referenced outside struct tags (validation messages, tests).
const (
	EnvAppEnv           = "PACKETS_APP_ENV"
	EnvPort             = "PACKETS_APP_PORT"
	EnvGatewayBaseURL   = "PACKETS_GATEWAY_BASE_URL"
	EnvGatewayVerifyURL = "PACKETS_GATEWAY_VERIFY_URL"
	EnvStorageDriver    = "PACKETS_STORAGE_DRIVER"
	EnvRedisURL         = "PACKETS_REDIS_URL"
	EnvRedisAddr        = "PACKETS_REDIS_ADDR"
	EnvDBDSN            = "PACKETS_DB_DSN"
	EnvDBDriver         = "PACKETS_DB_DRIVER"
	EnvIncrementStep    = "PACKETS_INCREMENT_STEP"
)
