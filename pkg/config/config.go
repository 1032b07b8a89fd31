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
	Gateway       GatewayConfig
	Storage       StorageConfig
	Redis         RedisConfig
	DB            DBConfig
	Session       SessionConfig
	Packets       PacketsConfig
	Checkout      CheckoutConfig
	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg.Redis, cfg.DB); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKETS_APP_ENV" required:"true"`
	Port         string `envconfig:"PACKETS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PACKETS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PACKETS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PACKETS_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"PACKETS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// GatewayConfig points at the remote storefront API. VerifyURL may differ from BaseURL
// because price verification is served by a separate host.
type GatewayConfig struct {
	BaseURL   string        `envconfig:"PACKETS_GATEWAY_BASE_URL" required:"true"`
	VerifyURL string        `envconfig:"PACKETS_GATEWAY_VERIFY_URL"`
	Timeout   time.Duration `envconfig:"PACKETS_GATEWAY_TIMEOUT" default:"10s"`
}

// VerifyBaseURL returns the verification host, falling back to BaseURL.
func (g GatewayConfig) VerifyBaseURL() string {
	if v := strings.TrimSpace(g.VerifyURL); v != "" {
		return v
	}
	return strings.TrimSpace(g.BaseURL)
}

func (g GatewayConfig) validate() error {
	for name, raw := range map[string]string{EnvGatewayBaseURL: g.BaseURL, EnvGatewayVerifyURL: g.VerifyURL} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url", name)
		}
	}
	return nil
}

type StorageConfig struct {
	Driver string `envconfig:"PACKETS_STORAGE_DRIVER" default:"memory"`
}

// NormalizedDriver lowercases the configured driver name.
func (s StorageConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

func (s StorageConfig) validate(redisCfg RedisConfig, dbCfg DBConfig) error {
	switch s.NormalizedDriver() {
	case StorageDriverMemory:
		return nil
	case StorageDriverRedis:
		if redisCfg.URL == "" && redisCfg.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis storage driver", EnvRedisURL, EnvRedisAddr)
		}
		return nil
	case StorageDriverSQL:
		if dbCfg.DSN == "" {
			return fmt.Errorf("%s is required for the sql storage driver", EnvDBDSN)
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKETS_REDIS_URL"`
	Address      string        `envconfig:"PACKETS_REDIS_ADDR"`
	Password     string        `envconfig:"PACKETS_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKETS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKETS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKETS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKETS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKETS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKETS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type DBConfig struct {
	DSN    string `envconfig:"PACKETS_DB_DSN"`
	Driver string `envconfig:"PACKETS_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"PACKETS_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PACKETS_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PACKETS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKETS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type SessionConfig struct {
	Header        string        `envconfig:"PACKETS_SESSION_HEADER" default:"X-Session-Id"`
	CookieName    string        `envconfig:"PACKETS_SESSION_COOKIE" default:"pf_session"`
	CookieSecure  bool          `envconfig:"PACKETS_SESSION_COOKIE_SECURE" default:"true"`
	IdleTTL       time.Duration `envconfig:"PACKETS_SESSION_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"PACKETS_SESSION_SWEEP_INTERVAL" default:"1m"`
}

type PacketsConfig struct {
	IncrementStep int `envconfig:"PACKETS_INCREMENT_STEP" default:"10"`
}

type CheckoutConfig struct {
	SubmitTimeout time.Duration `envconfig:"PACKETS_CHECKOUT_SUBMIT_TIMEOUT" default:"15s"`
	LockTTL       time.Duration `envconfig:"PACKETS_CHECKOUT_LOCK_TTL" default:"30s"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PACKETS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"PACKETS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"PACKETS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}
