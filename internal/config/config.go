package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	RedisHost      string `toml:"redis_host"`
	RedisPort      string `toml:"redis_port"`
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// sessions
	SessionTTL                  Duration `toml:"session_ttl"`
	SecureCookie                bool     `toml:"secure_cookie"`
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_allowed_per_min"`
	AllowedOrigins              []string `toml:"allowed_origins"`

	// catalog & cache
	CatalogNumberBase      int      `toml:"catalog_number_base"`
	CatalogListCacheTTL    Duration `toml:"catalog_list_cache_ttl"`
	CatalogPayloadCacheTTL Duration `toml:"catalog_payload_cache_ttl"`
	CacheDefaultTTL        Duration `toml:"cache_default_ttl"`
	CacheCleanupInterval   Duration `toml:"cache_cleanup_interval"`
	CacheComputeTimeout    Duration `toml:"cache_compute_timeout"`
}

// Duration decodes TOML strings like "30m" or "168h"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
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
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file and returns the section for env with defaults applied
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = 24 * time.Hour
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.CatalogNumberBase == 0 {
		c.CatalogNumberBase = 1026
	}
	if c.CatalogListCacheTTL.Duration == 0 {
		c.CatalogListCacheTTL.Duration = 30 * time.Minute
	}
	if c.CatalogPayloadCacheTTL.Duration == 0 {
		c.CatalogPayloadCacheTTL.Duration = time.Hour
	}
	if c.CacheDefaultTTL.Duration == 0 {
		c.CacheDefaultTTL.Duration = time.Hour
	}
	if c.CacheCleanupInterval.Duration == 0 {
		c.CacheCleanupInterval.Duration = 2 * time.Minute
	}
	if c.CacheComputeTimeout.Duration == 0 {
		c.CacheComputeTimeout.Duration = 5 * time.Second
	}
}
