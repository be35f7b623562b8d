package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Development-only fallbacks, used when the corresponding env vars are not set.
// Validate rejects all of them in production.
const (
	DevAdminUsername     = "admin"
	DevAdminPasswordHash = "$2a$14$6Gmhg85si2etd3K9oB8nYu1cxfbrdmhkg6wI6OXsa88IF4L2r/L9i" // testpass
	DevJWTSecret         = "development-only-insecure-jwt-secret"
	DefaultJWTExpiresIn  = 24 // hours
)

const minProductionSecretLen = 32

// env vars holding secrets, never read from the TOML file
const (
	EnvAdminUsername     = "CATALOG_ADMIN_USERNAME"
	EnvAdminPasswordHash = "CATALOG_ADMIN_PASSWORD_HASH"
	EnvJWTSecret         = "CATALOG_JWT_SECRET"
	EnvJWTExpiresIn      = "CATALOG_JWT_EXPIRES_IN_HOURS"
	EnvRedisPassword     = "CATALOG_REDIS_PASS"
	EnvPostgresPassword  = "CATALOG_DB_PASS"
)

var ErrInsecureConfig = errors.New("insecure configuration")

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// telemetry
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	TracingEnabled        bool   `toml:"tracing_enabled"`

	AllowedOrigins []string `toml:"allowed_origins"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// rate limiting: memory | lru | redis
	RateLimitStore         string        `toml:"rate_limit_store"`
	RateLimitLRUSize       int           `toml:"rate_limit_lru_size"`
	RateLimitSweepInterval time.Duration `toml:"rate_limit_sweep_interval"`
	// coarse per-client throttle over all /api/ routes, 0 disables it; needs redis
	APIRateLimitPerMin int `toml:"api_rate_limit_per_min"`

	// when set, logout also denylists the token until it expires
	RevokeOnLogout    bool `toml:"revoke_on_logout"`
	DenylistSizeBytes int  `toml:"denylist_size_bytes"`

	// secrets, loaded from env vars
	AdminUsername     string `toml:"-"`
	AdminPasswordHash string `toml:"-"`
	JWTSecret         string `toml:"-"`
	JWTExpiresInHours int    `toml:"-"`
	RedisPassword     string `toml:"-"`
	PostgresPassword  string `toml:"-"`

	// names of the settings that fell back to a development-only default
	InsecureDefaults []string `toml:"-"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
		env = EnvDevelopment
	case "prod", "production":
		cfg = t.Production
		env = EnvProduction
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] not found", env)
	}
	cfg.Environment = env
	return cfg, nil
}

// Load reads the TOML config for the given environment, fills the secrets from
// env vars and validates the result.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.LoadSecrets(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LoadSecrets reads the secret settings via lookup (os.LookupEnv outside of tests).
func (c *Config) LoadSecrets(lookup func(string) (string, bool)) error {
	c.InsecureDefaults = nil
	secretOrDefault := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		c.InsecureDefaults = append(c.InsecureDefaults, key)
		return def
	}

	c.AdminUsername = secretOrDefault(EnvAdminUsername, DevAdminUsername)
	c.AdminPasswordHash = secretOrDefault(EnvAdminPasswordHash, DevAdminPasswordHash)
	c.JWTSecret = secretOrDefault(EnvJWTSecret, DevJWTSecret)
	c.RedisPassword, _ = lookup(EnvRedisPassword)
	c.PostgresPassword, _ = lookup(EnvPostgresPassword)

	c.JWTExpiresInHours = DefaultJWTExpiresIn
	if v, ok := lookup(EnvJWTExpiresIn); ok && v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return fmt.Errorf("invalid %s value [%s]: must be a positive number of hours", EnvJWTExpiresIn, v)
		}
		c.JWTExpiresInHours = hours
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.RateLimitStore == "" {
		c.RateLimitStore = "memory"
	}
	if c.RateLimitLRUSize <= 0 {
		c.RateLimitLRUSize = 10_000
	}
	if c.RateLimitSweepInterval <= 0 {
		c.RateLimitSweepInterval = 10 * time.Minute
	}
	if c.DenylistSizeBytes <= 0 {
		c.DenylistSizeBytes = 1024 * 1024
	}
}

// Validate fails in production when any secret is missing or weak, and only
// warns about the development fallbacks otherwise.
func (c *Config) Validate() error {
	switch c.RateLimitStore {
	case "memory", "lru", "redis":
	default:
		return fmt.Errorf("unknown rate limit store: %s", c.RateLimitStore)
	}
	if (c.RateLimitStore == "redis" || c.APIRateLimitPerMin > 0) && c.RedisHost == "" {
		return errors.New("redis_host is required by the redis rate limiting")
	}
	if c.APIRateLimitPerMin < 0 {
		return fmt.Errorf("invalid api_rate_limit_per_min: %d", c.APIRateLimitPerMin)
	}

	if !c.IsProduction() {
		for _, key := range c.InsecureDefaults {
			log.Warnf("config: %s not set, using development-only default", key)
		}
		return nil
	}

	if len(c.InsecureDefaults) > 0 {
		return fmt.Errorf("%w: %s must be set in production", ErrInsecureConfig, strings.Join(c.InsecureDefaults, ", "))
	}
	if c.JWTSecret == DevJWTSecret || len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("%w: %s must be at least %d characters long", ErrInsecureConfig, EnvJWTSecret, minProductionSecretLen)
	}
	if c.AdminPasswordHash == DevAdminPasswordHash {
		return fmt.Errorf("%w: %s uses the development password", ErrInsecureConfig, EnvAdminPasswordHash)
	}

	return nil
}

// JWTExpiresIn is the admin session lifetime.
// NeedsRedis tells whether any configured component talks to redis.
func (c *Config) NeedsRedis() bool {
	return c.RateLimitStore == "redis" || c.APIRateLimitPerMin > 0
}

func (c *Config) JWTExpiresIn() time.Duration {
	return time.Duration(c.JWTExpiresInHours) * time.Hour
}
