package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sneak-radar/internal/config"
	"github.com/iliyamo/sneak-radar/internal/metrics"
)

// takeToken refills a bucket hash by whole intervals and takes one token.
// Returns {allowed, remaining, retry_after_ms}.
//
// KEYS[1] bucket key
// ARGV    now_ms, capacity, refill_tokens, interval_ms, ttl_ms
var takeToken = redis.NewScript(`
local now, cap, refill, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(st[1]), tonumber(st[2])
if tokens == nil or ts == nil then
  tokens, ts = cap, now
end
local n = math.floor(math.max(0, now - ts) / every)
if n > 0 then
  tokens = math.min(cap, tokens + n * refill)
  ts = ts + n * every
end
local ok, wait = 0, 0
if tokens > 0 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - ts))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// NewTokenBucket limits requests with a token bucket kept in Redis, one
// bucket per key (see buildRateKey).  Redis errors let the request
// through; without Redis the middleware is a pass-through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				cfg.TTL.Milliseconds(),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				if cfg.Debug {
					c.Logger().Warnf("ratelimit: key=%s result=%v err=%v", key, res, err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res[0] == 1 {
				return next(c)
			}

			// Round up so clients never retry early.
			secs := (res[2] + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			metrics.RateLimited.WithLabelValues(cfg.Prefix).Inc()
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// WriteLimits derives the bucket used for hint submissions and votes.
func WriteLimits(cfg config.RateLimitConfig) config.RateLimitConfig {
	w := cfg
	w.Capacity = cfg.WriteCapacity
	w.Prefix = cfg.Prefix + ":w"
	return w
}

// buildRateKey composes the bucket key from the parts KeyStrategy names,
// e.g. "ip_route" keys by client IP and route.  Unknown strategies key by
// all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	strategy := strings.ToLower(cfg.KeyStrategy)
	switch strategy {
	case "ip", "user", "route", "ip_user", "ip_route", "user_route":
	default:
		strategy = "ip_user_route"
	}

	parts := []string{cfg.Prefix}
	for _, part := range strings.Split(strategy, "_") {
		switch part {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userKey(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
