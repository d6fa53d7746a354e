package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, "pos.db", cfg.DB.DSN)
	assert.True(t, cfg.Throttle.Enabled)
	assert.Equal(t, config.BackendMemory, cfg.Throttle.Backend)
	assert.Equal(t, 60, cfg.Throttle.Capacity)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "pos.events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Outbox.Interval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)

	calc, err := cfg.Calculator()
	require.NoError(t, err)
	assert.Equal(t, "0.08", calc.TaxRate.String())
	assert.Equal(t, "1", calc.PointValue.String())

	tiers, err := cfg.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, "1000", tiers.Silver.String())
	assert.Equal(t, "10000", tiers.Platinum.String())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("POS_DB_DRIVER", "pgx")
	t.Setenv("POS_DB_DSN", "postgres://pos@localhost/pos")
	t.Setenv("POS_PRICING_TAX_RATE", "0.2")
	t.Setenv("POS_SERVER_PORT", "9090")
	t.Setenv("POS_THROTTLE_BACKEND", "redis")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DB.Driver)
	assert.Equal(t, "postgres://pos@localhost/pos", cfg.DB.DSN)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, config.BackendRedis, cfg.Throttle.Backend)

	calc, err := cfg.Calculator()
	require.NoError(t, err)
	assert.Equal(t, "0.2", calc.TaxRate.String())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
db:
  dsn: /var/lib/pos/pos.db
loyalty:
  silver: "500"
  gold: "2000"
  platinum: "8000"
log:
  level: debug
  pretty: true
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/pos/pos.db", cfg.DB.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	tiers, err := cfg.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, "500", tiers.Silver.String())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative tax rate", func(c *config.Config) { c.Pricing.TaxRate = "-0.01" }},
		{"malformed tax rate", func(c *config.Config) { c.Pricing.TaxRate = "eight" }},
		{"zero point value", func(c *config.Config) { c.Pricing.PointValue = "0" }},
		{"tiers not ascending", func(c *config.Config) { c.Loyalty.Gold = "900" }},
		{"unknown driver", func(c *config.Config) { c.DB.Driver = "mysql" }},
		{"empty dsn", func(c *config.Config) { c.DB.DSN = "" }},
		{"unknown throttle backend", func(c *config.Config) { c.Throttle.Backend = "memcached" }},
		{"zero capacity", func(c *config.Config) { c.Throttle.Capacity = 0 }},
		{"zero batch", func(c *config.Config) { c.Outbox.BatchSize = 0 }},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }},
		{"port out of range", func(c *config.Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("disabled throttle ignores backend", func(t *testing.T) {
		cfg := valid()
		cfg.Throttle.Enabled = false
		cfg.Throttle.Backend = "anything"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero tax rate is allowed", func(t *testing.T) {
		cfg := valid()
		cfg.Pricing.TaxRate = "0"
		assert.NoError(t, cfg.Validate())
	})
}
