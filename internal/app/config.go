package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the leadcache service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	CRM         CRMConfig         `mapstructure:"crm"`
	Leads       LeadsConfig       `mapstructure:"leads"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP on the leads endpoint.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// CRMConfig points at the CRM leads API.
type CRMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LeadsConfig tunes cache freshness and pagination.
type LeadsConfig struct {
	Limit    int           `mapstructure:"limit"`
	MaxPages int           `mapstructure:"max_pages"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timezone string        `mapstructure:"timezone"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Driver   string              `mapstructure:"driver"`
	Path     string              `mapstructure:"path"`
	Key      string              `mapstructure:"key"`
	Redis    RedisCacheConfig    `mapstructure:"redis"`
	Memcache MemcacheCacheConfig `mapstructure:"memcache"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MemcacheCacheConfig holds memcached connection options.
type MemcacheCacheConfig struct {
	Servers []string      `mapstructure:"servers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig schedules background jobs.
type MaintenanceConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	TempMaxAge    time.Duration `mapstructure:"temp_max_age"`
	ProbeSchedule string        `mapstructure:"probe_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("LEADCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: missing configuration")
	}
	if strings.TrimSpace(c.CRM.Token) == "" {
		return errors.New("config: crm.token is required")
	}
	if c.Leads.TTL < 0 {
		return fmt.Errorf("config: leads.ttl must not be negative, got %s", c.Leads.TTL)
	}

	switch normalizeDriver(c.Cache.Driver) {
	case CacheDriverFile, CacheDriverDatabase, CacheDriverMemory:
	case CacheDriverRedis:
		if strings.TrimSpace(c.Cache.Redis.Address) == "" {
			return errors.New("config: cache.redis.address is required for the redis driver")
		}
	case CacheDriverMemcache:
		if len(c.Cache.MemcacheClientConfig().Servers) == 0 {
			return errors.New("config: cache.memcache.servers is required for the memcache driver")
		}
	default:
		return fmt.Errorf("config: unsupported cache.driver %q", c.Cache.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 60)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("crm.base_url", "https://api.supremocrm.com.br/v1/leads")
	v.SetDefault("crm.token", "")
	v.SetDefault("crm.timeout", "15s")

	v.SetDefault("leads.limit", 1000)
	v.SetDefault("leads.max_pages", 100)
	v.SetDefault("leads.ttl", "30m")
	v.SetDefault("leads.timezone", "America/Sao_Paulo")

	v.SetDefault("cache.driver", CacheDriverFile)
	v.SetDefault("cache.path", "cache/leads_cache.json")
	v.SetDefault("cache.key", "leads")
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.memcache.servers", []string{"127.0.0.1:11211"})
	v.SetDefault("cache.memcache.timeout", "1s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/leadcache.sqlite")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "3s")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.sweep_schedule", "@hourly")
	v.SetDefault("maintenance.temp_max_age", "1h")
	v.SetDefault("maintenance.probe_schedule", "@every 5m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
