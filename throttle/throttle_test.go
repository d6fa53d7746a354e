package throttle_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/throttle"
)

var start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// =============================================================================
// MEMORY
// =============================================================================

func TestMemory_DrainsAndRefills(t *testing.T) {
	ctx := context.Background()
	clock := pos.NewMockClock(start)
	l, err := throttle.NewMemory(throttle.Config{Capacity: 3, RefillPerSecond: 1}, clock)
	require.NoError(t, err)

	// GIVEN: A full bucket of 3
	for i := range 3 {
		d, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	// WHEN: The fourth request arrives immediately
	d, err := l.Allow(ctx, "u1")
	require.NoError(t, err)

	// THEN: Rejected with a one second retry
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	// WHEN: Half a second passes
	clock.Advance(500 * time.Millisecond)
	d, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 500*time.Millisecond, d.RetryAfter)

	// WHEN: A full token has refilled
	clock.Advance(500 * time.Millisecond)
	d, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, err := throttle.NewMemory(throttle.Config{Capacity: 1, RefillPerSecond: 1}, pos.NewMockClock(start))
	require.NoError(t, err)

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestMemory_NeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	clock := pos.NewMockClock(start)
	l, err := throttle.NewMemory(throttle.Config{Capacity: 2, RefillPerSecond: 10}, clock)
	require.NoError(t, err)

	_, _ = l.Allow(ctx, "u")
	clock.Advance(time.Hour)

	allowed := 0
	for range 5 {
		d, _ := l.Allow(ctx, "u")
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestNewMemory_RejectsInvalidConfig(t *testing.T) {
	_, err := throttle.NewMemory(throttle.Config{Capacity: 0, RefillPerSecond: 1}, nil)
	require.Error(t, err)
	_, err = throttle.NewMemory(throttle.Config{Capacity: 1, RefillPerSecond: 0}, nil)
	require.Error(t, err)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_Returns429WhenExhausted(t *testing.T) {
	l, err := throttle.NewMemory(throttle.Config{Capacity: 1, RefillPerSecond: 0.5}, pos.NewMockClock(start))
	require.NoError(t, err)
	h := throttle.Middleware(l, throttle.RemoteIP, zerolog.Nop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":{"kind":"rate_limited","message":"too many requests"}}`, rec.Body.String())

	// Another client is unaffected
	other := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (throttle.Decision, error) {
	return throttle.Decision{}, errors.New("connection refused")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	h := throttle.Middleware(brokenLimiter{}, throttle.RemoteIP, zerolog.Nop())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_EmptyKeySkips(t *testing.T) {
	l, err := throttle.NewMemory(throttle.Config{Capacity: 1, RefillPerSecond: 1}, pos.NewMockClock(start))
	require.NoError(t, err)
	h := throttle.Middleware(l, func(*http.Request) string { return "" }, zerolog.Nop())(okHandler())

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

// =============================================================================
// REDIS (requires POS_TEST_REDIS_ADDR)
// =============================================================================

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedis_DrainsAndRefills(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	clock := pos.NewMockClock(start)
	prefix := "pos:test:" + uuid.NewString() + ":"
	l, err := throttle.NewRedis(client, throttle.Config{Capacity: 2, RefillPerSecond: 1}, prefix, clock)
	require.NoError(t, err)

	for range 2 {
		d, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	other, err := l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.Advance(time.Second)
	d, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
