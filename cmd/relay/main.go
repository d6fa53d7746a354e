/*
main.go - Outbox relay entry point

PURPOSE:
  Polls the outbox table written by the sale engine and publishes each
  event to Kafka. Runs next to the server against the same database.

COMMAND-LINE FLAGS:
  -config  Path to a YAML/JSON/TOML config file (optional)
  -once    Relay one batch and exit

SEE ALSO:
  - outbox/relay.go: Polling loop
  - outbox/kafka.go: Publisher
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/warp/pos-engine/config"
	"github.com/warp/pos-engine/outbox"
	"github.com/warp/pos-engine/store/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Relay one batch and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}
	log := cfg.Log.Logger().With().Str("component", "relay").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, log); err != nil {
		log.Fatal().Err(err).Msg("relay failed")
	}
}

func run(ctx context.Context, cfg *config.Config, once bool, log zerolog.Logger) error {
	store, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := outbox.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	relay := outbox.NewRelay(store, publisher, outbox.Config{
		Interval:    cfg.Outbox.Interval,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}, log)

	if once {
		res, err := relay.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("published", res.Published).Int("failed", res.Failed).Msg("single pass done")
		return nil
	}
	return relay.Run(ctx)
}
