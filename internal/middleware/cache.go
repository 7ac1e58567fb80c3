package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sneak-radar/internal/config"
)

// teeWriter copies the response into buf until it exceeds limit bytes,
// then stops copying and marks the capture as overflowed.
type teeWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKeyFrom builds "<prefix>:<path>:<sha1(method query)>".  The path
// stays readable so entries of one cinema can be dropped by pattern.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, r.URL.Path, sum[:])
}

// CachePatterns returns the key patterns of every cached response that
// depends on the hints of cinemaID: the cinema's own listings, the audit
// report, and the guesses of every cinema, since a hint at one cinema is
// ranking evidence for all others.
func CachePatterns(prefix string, cinemaID uint64) []string {
	return []string{
		fmt.Sprintf("%s:/v1/cinemas/%d/*", prefix, cinemaID),
		prefix + ":/v1/cinemas/*/guesses:*",
		prefix + ":/v1/audit/*",
	}
}

// RedisInvalidator deletes cached responses by key pattern.
type RedisInvalidator struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisInvalidator returns nil when rdb is nil.
func NewRedisInvalidator(cfg config.CacheConfig, rdb *redis.Client) *RedisInvalidator {
	if rdb == nil {
		return nil
	}
	return &RedisInvalidator{rdb: rdb, prefix: cfg.Prefix}
}

// InvalidateCinema drops the cached guesses, hint lists and audit report
// affected by a hint of cinemaID and returns the number of deleted keys.
// SCAN is used instead of KEYS so Redis is never blocked.
func (i *RedisInvalidator) InvalidateCinema(ctx context.Context, cinemaID uint64) (int, error) {
	deleted := 0
	for _, pattern := range CachePatterns(i.prefix, cinemaID) {
		iter := i.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return deleted, err
		}
		if len(batch) == 0 {
			continue
		}
		n, err := i.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

// cachedResponse is the value stored per key.  Every cached endpoint
// answers JSON, so the content type is the only header kept.
type cachedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct"`
	Body        []byte `json:"b"`
}

func (r cachedResponse) replay(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, r.ContentType)
	c.Response().Header().Set("X-Cache", "HIT")
	return c.Blob(r.Status, r.ContentType, r.Body)
}

// NewRedisCache caches 200 responses of the configured methods for
// cfg.TTL.  Without Redis it passes requests through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(bs, &hit) == nil && hit.Status != 0 {
					return hit.replay(c)
				}
			}

			tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = tw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if tw.status != http.StatusOK || tw.overflow {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      tw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        tw.buf.Bytes(),
			})
			if err == nil {
				// The request may be cancelled once the body is written.
				_ = rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err()
			}
			return nil
		}
	}
}
