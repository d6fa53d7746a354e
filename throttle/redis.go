package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/pos-engine/pos"
)

// tokenBucket refills, then takes one token. State lives in a hash
// {tokens, last_ms} that expires once the bucket would be full again.
//
// KEYS[1] bucket key
// ARGV    capacity, refill per second, now (ms)
// Returns {allowed, remaining tokens (floor), retry after (ms)}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil then
	tokens = capacity
	last = now
end

local elapsed = math.max(0, now - last) / 1000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_ms', now)
redis.call('PEXPIRE', key, math.ceil(capacity / rate * 1000) + 1000)

return {allowed, math.floor(tokens), retry}
`)

// Redis is a token bucket limiter shared by every process using the same
// Redis instance.
type Redis struct {
	client redis.Scripter
	cfg    Config
	prefix string
	clock  pos.Clock
}

var _ Limiter = (*Redis)(nil)

// NewRedis creates a limiter storing buckets under prefix.
func NewRedis(client redis.Scripter, cfg Config, prefix string, clock pos.Clock) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = pos.SystemClock{}
	}
	return &Redis{client: client, cfg: cfg, prefix: prefix, clock: clock}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := tokenBucket.Run(ctx, r.client, []string{r.prefix + key},
		r.cfg.Capacity, r.cfg.RefillPerSecond, r.clock.Now().UnixMilli()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("throttle: redis: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("throttle: redis: unexpected reply %v", res)
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(max(res[1], 0)),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
