package middlewares

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/yeremiapane/library-seat-app/config"
	"github.com/yeremiapane/library-seat-app/utils"
)

var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

type bucketSpec struct {
	prefix       string
	capacity     int
	refillTokens int
	interval     time.Duration
	ttl          time.Duration
	perRoute     bool
}

// localLimiter is the in-process fallback used without Redis.
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	spec     bucketSpec
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(spec bucketSpec) *localLimiter {
	return &localLimiter{limiters: make(map[string]*localEntry), spec: spec}
}

func (l *localLimiter) allow(key string, now time.Time) (bool, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		every := l.spec.interval / time.Duration(l.spec.refillTokens)
		entry = &localEntry{limiter: rate.NewLimiter(rate.Every(every), l.spec.capacity)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	if len(l.limiters) > 10000 {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.spec.ttl {
				delete(l.limiters, k)
			}
		}
	}

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, l.spec.interval
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	return true, int(entry.limiter.TokensAt(now)), 0
}

// NewRateLimiter is the general API limiter configured by RATE_LIMIT_*.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) gin.HandlerFunc {
	return tokenBucket(cfg.Enabled, bucketSpec{
		prefix:       cfg.Prefix,
		capacity:     cfg.Capacity,
		refillTokens: cfg.RefillTokens,
		interval:     cfg.RefillInterval,
		ttl:          cfg.TTL,
	}, rdb)
}

// NewStrictRateLimiter guards login and registration: AuthCapacity attempts
// per AuthInterval, per client IP and route.
func NewStrictRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) gin.HandlerFunc {
	capacity := cfg.AuthCapacity
	if capacity < 1 {
		capacity = 5
	}
	interval := cfg.AuthInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return tokenBucket(cfg.Enabled, bucketSpec{
		prefix:       cfg.Prefix + ":auth",
		capacity:     capacity,
		refillTokens: capacity,
		interval:     interval,
		ttl:          5 * interval,
		perRoute:     true,
	}, rdb)
}

func tokenBucket(enabled bool, spec bucketSpec, rdb *redis.Client) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if spec.capacity < 1 {
		spec.capacity = 1
	}
	if spec.refillTokens < 1 {
		spec.refillTokens = 1
	}
	if spec.interval <= 0 {
		spec.interval = time.Second
	}
	if spec.ttl < spec.interval {
		spec.ttl = 5 * spec.interval
	}
	local := newLocalLimiter(spec)

	return func(c *gin.Context) {
		key := rateKey(spec, c)
		now := time.Now()

		allowed, remaining, retry, err := redisAllow(c, rdb, spec, key, now)
		if err != nil {
			if !errors.Is(err, errNoRedis) {
				utils.ErrorLogger.Printf("[ratelimit] redis error for key=%s: %v", key, err)
			}
			allowed, remaining, retry = local.allow(key, now)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(spec.capacity))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			secs := int(math.Ceil(retry.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			utils.AbortWithError(c, http.StatusTooManyRequests, fmt.Errorf("too many requests, retry in %d seconds", secs))
			return
		}
		c.Next()
	}
}

var errNoRedis = errors.New("redis not configured")

func redisAllow(c *gin.Context, rdb *redis.Client, spec bucketSpec, key string, now time.Time) (bool, int, time.Duration, error) {
	if rdb == nil {
		return false, 0, 0, errNoRedis
	}
	vals, err := tokenBucketScript.Run(c.Request.Context(), rdb, []string{key},
		now.UnixMilli(),
		spec.capacity,
		spec.refillTokens,
		spec.interval.Milliseconds(),
		int64(spec.ttl/time.Second),
	).Result()
	if err != nil {
		return false, 0, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result %#v", vals)
	}
	allowed := asInt64(arr[0]) == 1
	remaining := int(asInt64(arr[1]))
	retry := time.Duration(asInt64(arr[2])) * time.Millisecond
	return allowed, remaining, retry, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func rateKey(spec bucketSpec, c *gin.Context) string {
	id := "ip:" + c.ClientIP()
	if uid, ok := c.Get(CtxUserID); ok {
		id = fmt.Sprintf("u:%v", uid)
	}
	if spec.perRoute {
		return spec.prefix + ":" + id + ":" + c.Request.Method + " " + c.FullPath()
	}
	return spec.prefix + ":" + id
}
