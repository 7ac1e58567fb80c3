package config

import (
	"strings"
	"time"
)

// CacheConfig controls the Redis response cache in front of the read
// endpoints (guesses, hint lists, audit).  Caching is off when Enabled is
// false or Redis is unreachable.  Entries are dropped early by the hint
// event consumer, so TTL only bounds staleness when no broker runs.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 60*time.Second),
		Prefix:       strings.TrimSuffix(envStr("CACHE_PREFIX", "sneak:cache"), ":"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if c.TTL <= 0 {
		c.TTL = 60 * time.Second
	}
	return c
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
