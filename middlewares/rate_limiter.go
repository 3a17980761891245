package middlewares

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/restaurant-reservation/utils"
	"golang.org/x/time/rate"
)

// tokenBucket refills one token every interval_ms up to capacity and takes
// one token per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 then
	local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + intervals)
		last_refill = last_refill + intervals * interval_ms
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP. With a Redis client the bucket
// is shared between instances; without one, or when Redis errors, an
// in-process limiter per IP is used.
type RateLimiter struct {
	Prefix string

	limit    rate.Limit
	burst    int
	redis    *redis.Client
	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(rps float64, burst int, rdb *redis.Client) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		Prefix:   "ratelimit",
		limit:    rate.Limit(rps),
		burst:    burst,
		redis:    rdb,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.Prefix + ":" + c.FullPath() + ":" + c.ClientIP()
		allowed, remaining, retryAfter := rl.allow(c.Request.Context(), key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			utils.RespondError(c, http.StatusTooManyRequests, fmt.Errorf("too many requests, please slow down"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, int, time.Duration) {
	if rl.redis != nil {
		allowed, remaining, retry, err := rl.allowRedis(ctx, key)
		if err == nil {
			return allowed, remaining, retry
		}
		utils.ErrorLogger.WithError(err).Warn("redis rate limit failed, using local limiter")
	}
	return rl.allowLocal(key)
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, int, time.Duration, error) {
	interval := time.Second
	if rl.limit > 0 {
		interval = time.Duration(float64(time.Second) / float64(rl.limit))
	}
	ttl := int64(math.Ceil((interval * time.Duration(rl.burst)).Seconds())) + 1

	vals, err := tokenBucket.Run(ctx, rl.redis, []string{key},
		time.Now().UnixMilli(), rl.burst, interval.Milliseconds(), ttl).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit result %v", vals)
	}
	return vals[0] == 1, int(vals[1]), time.Duration(vals[2]) * time.Millisecond, nil
}

func (rl *RateLimiter) allowLocal(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	now := time.Now()
	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	return true, int(v.limiter.TokensAt(now)), 0
}

// Cleanup forgets clients idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) > maxIdle {
			delete(rl.visitors, key)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup(3 * interval)
			case <-ctx.Done():
				return
			}
		}
	}()
}
