package throttle

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/warp/pos-engine/pos"
)

// maxIdleBuckets bounds the map before full buckets are swept.
const maxIdleBuckets = 10_000

type bucket struct {
	tokens float64
	last   time.Time
}

// Memory is an in-process token bucket limiter.
type Memory struct {
	cfg   Config
	clock pos.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates a limiter. A nil clock uses the system clock.
func NewMemory(cfg Config, clock pos.Clock) (*Memory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = pos.SystemClock{}
	}
	return &Memory{cfg: cfg, clock: clock, buckets: make(map[string]*bucket)}, nil
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		if len(m.buckets) >= maxIdleBuckets {
			m.sweep(now)
		}
		b = &bucket{tokens: float64(m.cfg.Capacity), last: now}
		m.buckets[key] = b
	}
	m.refill(b, now)

	if b.tokens < 1 {
		return Decision{RetryAfter: retryAfter(b.tokens, m.cfg.RefillPerSecond)}, nil
	}
	b.tokens--
	return Decision{Allowed: true, Remaining: int(math.Floor(b.tokens))}, nil
}

func (m *Memory) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(m.cfg.Capacity), b.tokens+elapsed*m.cfg.RefillPerSecond)
		b.last = now
	}
}

// sweep drops buckets that have refilled completely; they behave exactly
// like a new bucket.
func (m *Memory) sweep(now time.Time) {
	for key, b := range m.buckets {
		m.refill(b, now)
		if b.tokens >= float64(m.cfg.Capacity) {
			delete(m.buckets, key)
		}
	}
}
