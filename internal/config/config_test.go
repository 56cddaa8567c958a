package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industryvis/historian/internal/apperr"
)

const validYAML = `
database:
  server: db.example.com
  port: 1433
  name: Runtime
  user: reader
  password: secret
  schema_profile: default
  table: TagHistory
pool:
  max_size: 3
  connection_timeout_seconds: 15
cache:
  max_entries: 100
  ttl_seconds: 600
logging:
  level: debug
  format: text
`

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.example.com", cfg.Database.Server)
	assert.Equal(t, 1433, cfg.Database.Port)
	assert.Equal(t, "TagHistory", cfg.Database.Table)
	assert.Equal(t, 3, cfg.Pool.MaxSize)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  server: db\n"))
	require.NoError(t, err)

	assert.Equal(t, 1433, cfg.Database.Port)
	assert.Equal(t, "default", cfg.Database.SchemaProfile)
	assert.Equal(t, 5, cfg.PoolSettings().MaxSize)
	assert.Equal(t, 200, cfg.Cache.MaxEntries)
	assert.Equal(t, 1800, cfg.Cache.TTLSeconds)
	assert.Equal(t, 1000, cfg.Processing.ColumnarThreshold)
	assert.Equal(t, 5000, cfg.Processing.MaxPointsPerSeries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Warmup.Enabled)
}

func TestParseExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("HISTORIAN_DB_PASSWORD", "hunter2")

	cfg, err := Parse([]byte("database:\n  server: db\n  password: ${HISTORIAN_DB_PASSWORD}\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Database.Password)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing server", func(c *Config) { c.Database.Server = "" }},
		{"port too high", func(c *Config) { c.Database.Port = 70000 }},
		{"pool too large", func(c *Config) { c.Pool.MaxSize = 50 }},
		{"pool negative", func(c *Config) { c.Pool.MaxSize = -1 }},
		{"cache too small", func(c *Config) { c.Cache.MaxEntries = 5 }},
		{"ttl too short", func(c *Config) { c.Cache.TTLSeconds = 10 }},
		{"ttl too long", func(c *Config) { c.Cache.TTLSeconds = 100000 }},
		{"downsample cap too small", func(c *Config) { c.Processing.MaxPointsPerSeries = 10 }},
		{"warmup qps", func(c *Config) { c.Warmup.Enabled = true; c.Warmup.QPS = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindConfig))
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Runtime", cfg.Database.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestSettingsConverters(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	db := cfg.DatabaseSettings()
	assert.Equal(t, "db.example.com", db.Server)
	assert.Equal(t, "Runtime", db.Database)
	assert.Equal(t, "reader", db.Username)

	pool := cfg.PoolSettings()
	assert.Equal(t, 3, pool.MaxSize)
	assert.Equal(t, 15*time.Second, pool.ConnectionTimeout)

	cacheCfg := cfg.CacheSettings()
	assert.Equal(t, 100, cacheCfg.MaxEntries)
	assert.Equal(t, 10*time.Minute, cacheCfg.TTL)

	assert.Equal(t, time.Minute, cfg.SweepInterval())

	opts := cfg.ProcessingSettings()
	assert.Equal(t, 1000, opts.ColumnarThreshold)
	assert.Equal(t, 5000, opts.MaxPointsPerSeries)
}

func TestDesktopPoolPreset(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  server: db\npool:\n  desktop: true\n  max_size: 2\n"))
	require.NoError(t, err)

	pool := cfg.PoolSettings()
	assert.Equal(t, 2, pool.MaxSize)
	assert.Equal(t, 5*time.Minute, pool.IdleTimeout)
}
