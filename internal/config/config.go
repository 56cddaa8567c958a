// Package config loads and validates application configuration from a
// YAML file with environment variable expansion.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/industryvis/historian/internal/apperr"
	"github.com/industryvis/historian/internal/cache"
	"github.com/industryvis/historian/internal/database"
	"github.com/industryvis/historian/internal/processing"
)

// Config holds all configuration for the historian service.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Warmup     WarmupConfig     `mapstructure:"warmup"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Server        string `mapstructure:"server"`
	Port          int    `mapstructure:"port"`
	Name          string `mapstructure:"name"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	SchemaProfile string `mapstructure:"schema_profile"`
	Table         string `mapstructure:"table"`
}

type PoolConfig struct {
	MaxSize                  int  `mapstructure:"max_size"`
	ConnectionTimeoutSeconds int  `mapstructure:"connection_timeout_seconds"`
	IdleTimeoutSeconds       int  `mapstructure:"idle_timeout_seconds"`
	MaxLifetimeSeconds       int  `mapstructure:"max_lifetime_seconds"`
	Desktop                  bool `mapstructure:"desktop"`
}

type CacheConfig struct {
	MaxEntries           int `mapstructure:"max_entries"`
	TTLSeconds           int `mapstructure:"ttl_seconds"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

type ProcessingConfig struct {
	ColumnarThreshold  int `mapstructure:"columnar_threshold"`
	MaxPointsPerSeries int `mapstructure:"max_points_per_series"`
}

type WarmupConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	QPS        float64  `mapstructure:"qps"`
	RecentDays int      `mapstructure:"recent_days"`
	Tags       []string `mapstructure:"tags"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load reads configuration from a YAML file, expanding ${VAR}
// references from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes. Environment variables in
// the document are expanded first so secrets can stay out of the file.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	// Round trip through yaml to reject malformed documents with a
	// parse error rather than a silent partial config.
	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "failed to parse config")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "failed to read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are internally consistent; Unmarshal cannot fail here.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.server", "localhost")
	v.SetDefault("database.port", 1433)
	v.SetDefault("database.schema_profile", "default")
	v.SetDefault("database.table", "TagHistory")

	// Pool values default to zero, meaning "take the preset value"
	// (default or desktop) in PoolSettings.
	v.SetDefault("pool.max_size", 0)
	v.SetDefault("pool.connection_timeout_seconds", 0)
	v.SetDefault("pool.idle_timeout_seconds", 0)
	v.SetDefault("pool.max_lifetime_seconds", 0)
	v.SetDefault("pool.desktop", false)

	v.SetDefault("cache.max_entries", 200)
	v.SetDefault("cache.ttl_seconds", 1800)
	v.SetDefault("cache.sweep_interval_seconds", 60)

	v.SetDefault("processing.columnar_threshold", 1000)
	v.SetDefault("processing.max_points_per_series", 5000)

	v.SetDefault("warmup.enabled", false)
	v.SetDefault("warmup.qps", 2.0)
	v.SetDefault("warmup.recent_days", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
}

// Validate checks values against operational bounds. Bounds protect
// the historian from configurations that would overload it.
func (c *Config) Validate() error {
	if c.Database.Server == "" {
		return configErr("database.server must be set")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return configErr("database.port must be in 1..65535, got %d", c.Database.Port)
	}
	if c.Pool.MaxSize < 0 || c.Pool.MaxSize > 20 {
		return configErr("pool.max_size must be in 1..20, got %d", c.Pool.MaxSize)
	}
	if c.Pool.ConnectionTimeoutSeconds < 0 || c.Pool.ConnectionTimeoutSeconds > 300 {
		return configErr("pool.connection_timeout_seconds must be in 1..300, got %d", c.Pool.ConnectionTimeoutSeconds)
	}
	if c.Cache.MaxEntries < 10 || c.Cache.MaxEntries > 1000 {
		return configErr("cache.max_entries must be in 10..1000, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTLSeconds < 60 || c.Cache.TTLSeconds > 7200 {
		return configErr("cache.ttl_seconds must be in 60..7200, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.SweepIntervalSeconds < 10 || c.Cache.SweepIntervalSeconds > 3600 {
		return configErr("cache.sweep_interval_seconds must be in 10..3600, got %d", c.Cache.SweepIntervalSeconds)
	}
	if c.Processing.ColumnarThreshold < 0 {
		return configErr("processing.columnar_threshold must be non-negative, got %d", c.Processing.ColumnarThreshold)
	}
	if c.Processing.MaxPointsPerSeries < 100 || c.Processing.MaxPointsPerSeries > 100000 {
		return configErr("processing.max_points_per_series must be in 100..100000, got %d", c.Processing.MaxPointsPerSeries)
	}
	if c.Warmup.Enabled && c.Warmup.QPS <= 0 {
		return configErr("warmup.qps must be positive when warmup is enabled, got %v", c.Warmup.QPS)
	}
	return nil
}

func configErr(format string, args ...interface{}) error {
	return apperr.New(apperr.KindConfig, format, args...)
}

// DatabaseSettings converts to the database layer's connection config.
func (c *Config) DatabaseSettings() database.DatabaseConfig {
	return database.DatabaseConfig{
		Server:   c.Database.Server,
		Port:     c.Database.Port,
		Database: c.Database.Name,
		Username: c.Database.User,
		Password: c.Database.Password,
	}
}

// PoolSettings converts to the pool's config. The desktop flag swaps
// in the smaller footprint preset before applying explicit overrides.
func (c *Config) PoolSettings() database.PoolConfig {
	base := database.DefaultPoolConfig()
	if c.Pool.Desktop {
		base = database.DesktopPoolConfig()
	}
	if c.Pool.MaxSize > 0 {
		base.MaxSize = c.Pool.MaxSize
	}
	if c.Pool.ConnectionTimeoutSeconds > 0 {
		base.ConnectionTimeout = time.Duration(c.Pool.ConnectionTimeoutSeconds) * time.Second
	}
	if c.Pool.IdleTimeoutSeconds > 0 {
		base.IdleTimeout = time.Duration(c.Pool.IdleTimeoutSeconds) * time.Second
	}
	if c.Pool.MaxLifetimeSeconds > 0 {
		base.MaxLifetime = time.Duration(c.Pool.MaxLifetimeSeconds) * time.Second
	}
	return base
}

// CacheSettings converts to the cache's config.
func (c *Config) CacheSettings() cache.Config {
	return cache.Config{
		MaxEntries: c.Cache.MaxEntries,
		TTL:        time.Duration(c.Cache.TTLSeconds) * time.Second,
	}
}

// SweepInterval returns the eviction sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalSeconds) * time.Second
}

// ProcessingSettings converts to the pipeline's options.
func (c *Config) ProcessingSettings() processing.Options {
	return processing.Options{
		ColumnarThreshold:  c.Processing.ColumnarThreshold,
		MaxPointsPerSeries: c.Processing.MaxPointsPerSeries,
	}
}
