// Package ingest guards the identify/track write path.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a per-write-key sliding window limiter backed by Redis.
// Each key gets a sorted set of request timestamps; a Lua script atomically
// expires old entries, checks the count, and records the new request.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
}

// Lua script for atomic sliding window rate limiting.
// 1. Remove entries older than the window
// 2. Count remaining entries
// 3. If under the limit, add a new entry and return 1 (allowed)
// 4. If at/over the limit, return 0 (denied)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
	}
}

func rlKey(writeKey string) string {
	return fmt.Sprintf("ingest_rl:%s", writeKey)
}

// Allow checks whether one more ingest call for this write key fits inside
// the one-second window. A limit of zero disables limiting, and Redis
// failures fail open: dropping writes because the limiter is down is worse
// than briefly over-admitting.
func (rl *RateLimiter) Allow(ctx context.Context, writeKey string, limit int) bool {
	if limit <= 0 {
		return true
	}

	key := rlKey(writeKey)
	now := time.Now().UnixMilli()
	window := int64(1000)
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{key},
		now, window, limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "write_key", writeKey)
		return true
	}

	if result == 0 {
		rl.logger.Debug("ingest rate limited", "write_key", writeKey, "limit", limit)
		return false
	}
	return true
}
