/*
Package config loads the server and relay configuration.

PURPOSE:
  One Config struct for both binaries, filled by viper from (in order of
  precedence) POS_-prefixed environment variables, an optional YAML file
  and built-in defaults. Nested keys map to env names by replacing "." with
  "_": db.dsn is POS_DB_DSN, pricing.tax_rate is POS_PRICING_TAX_RATE.

USAGE:
  cfg, err := config.Load("config.yaml") // "" for env + defaults only
  if err != nil {
      log.Fatal(err)
  }
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/warp/pos-engine/pos"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "POS"

type Config struct {
	Server   Server   `mapstructure:"server"`
	DB       DB       `mapstructure:"db"`
	Pricing  Pricing  `mapstructure:"pricing"`
	Loyalty  Loyalty  `mapstructure:"loyalty"`
	Throttle Throttle `mapstructure:"throttle"`
	Redis    Redis    `mapstructure:"redis"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Outbox   Outbox   `mapstructure:"outbox"`
	Log      Log      `mapstructure:"log"`
}

type Server struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DB struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Pricing holds decimal values as strings so they never pass through float64.
type Pricing struct {
	TaxRate    string `mapstructure:"tax_rate"`
	PointValue string `mapstructure:"point_value"`
}

type Loyalty struct {
	Silver   string `mapstructure:"silver"`
	Gold     string `mapstructure:"gold"`
	Platinum string `mapstructure:"platinum"`
}

type Throttle struct {
	Enabled         bool    `mapstructure:"enabled"`
	Backend         string  `mapstructure:"backend"`
	Capacity        int     `mapstructure:"capacity"`
	RefillPerSecond float64 `mapstructure:"refill_per_second"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Outbox struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Throttle backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// =============================================================================
// LOADING
// =============================================================================

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "pos.db")

	v.SetDefault("pricing.tax_rate", "0.08")
	v.SetDefault("pricing.point_value", "1")

	v.SetDefault("loyalty.silver", "1000")
	v.SetDefault("loyalty.gold", "5000")
	v.SetDefault("loyalty.platinum", "10000")

	v.SetDefault("throttle.enabled", true)
	v.SetDefault("throttle.backend", BackendMemory)
	v.SetDefault("throttle.capacity", 60)
	v.SetDefault("throttle.refill_per_second", 1.0)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "pos.events")

	v.SetDefault("outbox.interval", 5*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads configuration from path (optional) and the environment, then
// validates it.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch reloads the file at path whenever it changes and hands the new,
// valid configuration to onChange. Invalid edits are reported to onError
// and otherwise ignored.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		return errors.New("watch requires a config file")
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			onError(err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks every value the binaries depend on.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("db.driver: unsupported driver %q (want sqlite3 or pgx)", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("db.dsn: is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}

	calc, err := c.Calculator()
	if err != nil {
		return err
	}
	if calc.TaxRate.IsNegative() {
		return errors.New("pricing.tax_rate: must be >= 0")
	}
	if !calc.PointValue.IsPositive() {
		return errors.New("pricing.point_value: must be > 0")
	}
	thresholds, err := c.Thresholds()
	if err != nil {
		return err
	}
	if err := thresholds.Validate(); err != nil {
		return fmt.Errorf("loyalty: %w", err)
	}

	if c.Throttle.Enabled {
		switch c.Throttle.Backend {
		case BackendMemory, BackendRedis:
		default:
			return fmt.Errorf("throttle.backend: unsupported backend %q (want memory or redis)", c.Throttle.Backend)
		}
		if c.Throttle.Capacity <= 0 || c.Throttle.RefillPerSecond <= 0 {
			return errors.New("throttle: capacity and refill_per_second must be > 0")
		}
	}

	if c.Outbox.Interval <= 0 || c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		return errors.New("outbox: interval, batch_size and max_attempts must be > 0")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Calculator builds the pricing calculator from the pricing section.
func (c *Config) Calculator() (pos.Calculator, error) {
	rate, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return pos.Calculator{}, fmt.Errorf("pricing.tax_rate: %w", err)
	}
	value, err := decimal.NewFromString(c.Pricing.PointValue)
	if err != nil {
		return pos.Calculator{}, fmt.Errorf("pricing.point_value: %w", err)
	}
	return pos.Calculator{TaxRate: rate, PointValue: value}, nil
}

// Thresholds builds the loyalty tier thresholds.
func (c *Config) Thresholds() (pos.Thresholds, error) {
	var t pos.Thresholds
	for _, f := range []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"loyalty.silver", c.Loyalty.Silver, &t.Silver},
		{"loyalty.gold", c.Loyalty.Gold, &t.Gold},
		{"loyalty.platinum", c.Loyalty.Platinum, &t.Platinum},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return pos.Thresholds{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = d
	}
	return t, nil
}

// Addr is the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Logger builds the process logger and applies the level globally, so a
// later SetGlobalLevel (config reload) takes effect on every logger.
// Pretty selects the console writer; otherwise it writes JSON lines to stdout.
func (l Log) Logger() zerolog.Logger {
	zerolog.SetGlobalLevel(l.ParsedLevel())
	var w io.Writer = os.Stdout
	if l.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// ParsedLevel returns the configured level, defaulting to info.
func (l Log) ParsedLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
