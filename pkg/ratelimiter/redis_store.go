package ratelimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes atomically. Denied requests do not
// consume tokens. Returns {remaining, reset_at_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local requested = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "refill")
local tokens = tonumber(state[1])
local refill = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  refill = now
end

local intervals = math.floor((now - refill) / interval)
if intervals > 0 then
  tokens = math.min(tokens + intervals * rate, capacity)
  refill = refill + intervals * interval
end

local remaining = tokens - requested
if remaining >= 0 then
  tokens = remaining
end

redis.call("HSET", key, "tokens", tokens, "refill", refill)
local ttl = math.ceil(capacity / rate) * interval + interval
redis.call("PEXPIRE", key, ttl)
return {remaining, refill + interval}
`)

// RedisStore keeps buckets in Redis hashes.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (int, time.Time, error) {
	res, err := tokenBucketScript.Run(ctx, s.client, []string{key},
		cfg.Capacity,
		cfg.RefillRate,
		cfg.RefillInterval.Milliseconds(),
		time.Now().UnixMilli(),
		tokens,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
