/*
Package outbox relays committed outbox rows to a message broker.

PURPOSE:
  Sales, refunds and status changes append an outbox row inside the same
  database transaction as the change itself. The relay polls those rows,
  publishes them and marks them published. Delivery is at-least-once: a
  crash between publish and mark republishes the batch.

DESIGN:
  - Runs a loop with a configurable poll interval
  - Processes up to BatchSize rows per tick, oldest first
  - A failed row stays pending and is retried next tick until it has
    failed MaxAttempts times, then it is parked as failed
  - The sale engine never waits on the relay

USAGE:
  relay := outbox.NewRelay(store, publisher, outbox.Config{...}, log)
  err := relay.Run(ctx) // returns when ctx is cancelled

SEE ALSO:
  - kafka.go: Publisher backed by segmentio/kafka-go
  - store/sqlstore/outbox.go: Source implementation
*/
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/pos-engine/pos"
)

// Source is where pending events come from.
type Source interface {
	PendingOutbox(ctx context.Context, limit int) ([]pos.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) error
}

// Publisher delivers a batch of events in order.
//
// A nil error means every event was delivered. A *BatchError reports the
// outcome of each event; any other error fails the whole batch.
type Publisher interface {
	Publish(ctx context.Context, events []pos.OutboxEvent) error
	Close() error
}

// BatchError carries one error per published event, nil when delivered.
type BatchError struct {
	Errs []error
}

func (e *BatchError) Error() string {
	failed := 0
	for _, err := range e.Errs {
		if err != nil {
			failed++
		}
	}
	return fmt.Sprintf("outbox: %d of %d events failed", failed, len(e.Errs))
}

// Config controls polling.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// DefaultConfig polls every 5s, 100 events at a time.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Second, BatchSize: 100, MaxAttempts: 10}
}

// Result summarizes one relay pass.
type Result struct {
	Published int
	Failed    int
}

// Relay moves events from a Source to a Publisher.
type Relay struct {
	source    Source
	publisher Publisher
	cfg       Config
	log       zerolog.Logger
}

// NewRelay creates a relay. Zero config fields take DefaultConfig values.
func NewRelay(source Source, publisher Publisher, cfg Config, log zerolog.Logger) *Relay {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Relay{source: source, publisher: publisher, cfg: cfg, log: log}
}

// Run processes batches until ctx is cancelled. A full batch that was
// delivered without failures is followed immediately by the next one;
// otherwise the relay waits for the ticker.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.cfg.Interval).Int("batch_size", r.cfg.BatchSize).Msg("outbox relay started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		for {
			res, err := r.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				r.log.Error().Err(err).Msg("outbox relay pass failed")
				break
			}
			if res.Failed > 0 || res.Published < r.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce publishes at most one batch.
func (r *Relay) RunOnce(ctx context.Context) (Result, error) {
	events, err := r.source.PendingOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("load pending events: %w", err)
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	errs := make([]error, len(events))
	if err := r.publisher.Publish(ctx, events); err != nil {
		var batch *BatchError
		if errors.As(err, &batch) && len(batch.Errs) == len(events) {
			copy(errs, batch.Errs)
		} else {
			for i := range errs {
				errs[i] = err
			}
		}
	}

	var (
		res       Result
		published []string
	)
	for i, e := range events {
		if errs[i] == nil {
			published = append(published, e.ID)
			continue
		}
		res.Failed++
		if err := r.source.MarkFailed(ctx, e.ID, errs[i], r.cfg.MaxAttempts); err != nil {
			return res, fmt.Errorf("mark event %s failed: %w", e.ID, err)
		}
		r.log.Warn().Err(errs[i]).
			Str("event_id", e.ID).
			Str("event_type", e.Type).
			Int("attempt", e.Attempts+1).
			Msg("outbox event not delivered")
	}
	if err := r.source.MarkPublished(ctx, published); err != nil {
		return res, fmt.Errorf("mark events published: %w", err)
	}
	res.Published = len(published)

	r.log.Info().Int("published", res.Published).Int("failed", res.Failed).Msg("outbox batch relayed")
	return res, nil
}
