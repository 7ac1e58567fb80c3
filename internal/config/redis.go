package config

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient builds a Redis client from the environment:
//
//    REDIS_ADDR      host:port (REDIS_HOST and REDIS_PORT win when both set)
//    REDIS_PASSWORD  optional
//    REDIS_DB        database number, default 0
//    REDIS_TLS       "true" or "1" enables TLS
//
// It returns nil when the server does not answer a ping within two
// seconds; the response cache and the rate limiter then pass requests
// through.
func NewRedisClient(log *logrus.Logger) *redis.Client {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	var tlsConf *tls.Config
	if envBool("REDIS_TLS", false) {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        envInt("REDIS_DB", 0),
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", addr).Warn("redis unavailable, cache and rate limit disabled")
		_ = client.Close()
		return nil
	}
	log.WithField("addr", addr).Info("redis connected")
	return client
}
