/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the POS back office HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file + POS_* environment)
  2. Open the store and migrate the schema
  3. Build the sale engine from pricing and loyalty settings
  4. Optionally seed demo data
  5. Configure HTTP router and throttling
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML/JSON/TOML config file (optional)
  -seed    Load demo data into an empty database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database and Redis connections
  4. Exit

EXAMPLES:
  # In-memory SQLite with demo data
  POS_DB_DSN=":memory:" ./server -seed

  # PostgreSQL with Redis throttling
  POS_DB_DRIVER=pgx POS_DB_DSN="postgres://pos@localhost/pos" \
  POS_THROTTLE_ENABLED=true POS_THROTTLE_BACKEND=redis ./server

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - cmd/relay: Outbox to Kafka relay
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/warp/pos-engine/api"
	"github.com/warp/pos-engine/config"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlstore"
	"github.com/warp/pos-engine/throttle"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seed := flag.Bool("seed", false, "Load demo data into an empty database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}
	log := cfg.Log.Logger()

	if err := run(cfg, *configPath, *seed, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, configPath string, seed bool, log zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	calc, err := cfg.Calculator()
	if err != nil {
		return err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return err
	}
	engine := pos.NewEngine(store,
		pos.WithCalculator(calc),
		pos.WithThresholds(thresholds),
		pos.WithLogger(log.With().Str("component", "engine").Logger()),
	)

	if seed {
		res, err := api.Seed(ctx, store, engine)
		if err != nil {
			return err
		}
		log.Info().Bool("seeded", res.Seeded).Int("products", res.Products).Int("customers", res.Customers).Msg("demo data")
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	if configPath != "" {
		err := config.Watch(configPath, func(next *config.Config) {
			zerolog.SetGlobalLevel(next.Log.ParsedLevel())
			log.Info().Str("level", next.Log.ParsedLevel().String()).Msg("configuration reloaded")
		}, func(err error) {
			log.Warn().Err(err).Msg("ignoring invalid configuration change")
		})
		if err != nil {
			return err
		}
	}

	handler := api.NewHandler(store, engine, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Limiter:        limiter,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("db", store.Driver()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

// newLimiter builds the configured limiter. A nil limiter disables throttling.
func newLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (throttle.Limiter, func(), error) {
	noop := func() {}
	if !cfg.Throttle.Enabled {
		return nil, noop, nil
	}
	tc := throttle.Config{Capacity: cfg.Throttle.Capacity, RefillPerSecond: cfg.Throttle.RefillPerSecond}

	switch cfg.Throttle.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so an unreachable Redis only loses throttling.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
		}
		l, err := throttle.NewRedis(client, tc, "pos:throttle:", nil)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return l, func() { client.Close() }, nil
	default:
		l, err := throttle.NewMemory(tc, nil)
		if err != nil {
			return nil, noop, err
		}
		return l, noop, nil
	}
}
