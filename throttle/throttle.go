/*
Package throttle limits request rates per caller.

PURPOSE:
  A token bucket per key (usually the caller's user ID, or remote IP for
  anonymous routes). Each request takes one token; tokens refill at a
  constant rate up to the bucket capacity.

BACKENDS:
  Memory: one process, buckets in a map guarded by a mutex
  Redis:  shared across replicas, bucket state updated by a Lua script so
          read-refill-take is atomic

SEE ALSO:
  - middleware.go: chi/net/http middleware returning 429
*/
package throttle

import (
	"context"
	"errors"
	"math"
	"time"
)

// Config sizes every bucket.
type Config struct {
	Capacity        int
	RefillPerSecond float64
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return errors.New("throttle: capacity must be > 0")
	}
	if c.RefillPerSecond <= 0 {
		return errors.New("throttle: refill rate must be > 0")
	}
	return nil
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter takes one token from the bucket identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// retryAfter is the time until one token is available again.
func retryAfter(tokens, refillPerSecond float64) time.Duration {
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(missing / refillPerSecond * float64(time.Second)))
}
