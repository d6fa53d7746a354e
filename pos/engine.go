/*
engine.go - Sale orchestrator

PURPOSE:
  Engine is the transaction boundary. Every mutating workflow (sales,
  refunds, status changes, manual loyalty and stock adjustments) runs in
  exactly one TxStore.WithTx call. Any error inside rolls the whole unit of
  work back; nothing is retried and nothing runs in the background.

CREATE SALE SEQUENCE:
  1. Validate the request (no side effects yet)
  2. Begin unit of work
  3. Stock.Reserve every line
  4. Subtotal from reserved prices
  5. Lock customer, redeem points
  6. Calculator.Compute (negative total aborts)
  7. Insert transaction (pending) with line snapshots
  8. Loyalty.Accrue on the charged total
  9. Complete
  10. Append outbox event, commit

CONCURRENCY:
  Two sales racing for the last unit serialize in the database: row locks
  on PostgreSQL, the write lock on SQLite, the store lock in memory. The
  compare-and-set decrement is the final guard, so exactly one wins.

SEE ALSO:
  - sale.go: CreateSale
  - refund.go: Status changes, refunds, manual adjustments
  - events.go: Outbox payloads
*/
package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Engine sequences stock, pricing and loyalty into atomic units of work.
type Engine struct {
	store   TxStore
	calc    Calculator
	loyalty Loyalty
	stock   Stock
	clock   Clock
	numbers NumberGenerator
	log     zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithCalculator(c Calculator) Option {
	return func(e *Engine) { e.calc = c }
}

func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.loyalty.Thresholds = t }
}

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithNumbers(n NumberGenerator) Option {
	return func(e *Engine) { e.numbers = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine with default pricing, tiers and clock.
func NewEngine(store TxStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		calc:    DefaultCalculator(),
		loyalty: Loyalty{Thresholds: DefaultThresholds()},
		clock:   SystemClock{},
		numbers: DefaultNumbers,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.loyalty.Clock = e.clock
	return e
}

// Calculator returns the pricing configuration in use.
func (e *Engine) Calculator() Calculator {
	return e.calc
}

// Thresholds returns the tier thresholds in use.
func (e *Engine) Thresholds() Thresholds {
	return e.loyalty.Thresholds
}

// nextNumber generates a transaction number not yet present in the store.
func (e *Engine) nextNumber(ctx context.Context, s Store) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number := e.numbers.Next(e.clock.Now())
		exists, err := s.TransactionNumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check transaction number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique transaction number", ErrDuplicate)
}

// rejected logs a failed workflow at the level its kind deserves.
func (e *Engine) rejected(err error, op string) {
	kind := KindOf(err)
	ev := e.log.Warn()
	if kind == KindInternal {
		ev = e.log.Error()
	}
	ev.Err(err).Str("op", op).Str("kind", string(kind)).Msg("operation rejected")
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}
