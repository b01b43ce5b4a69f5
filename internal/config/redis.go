package config

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis when it is configured. It returns nil when
// Redis is disabled or unreachable; callers fall back to in-memory storage.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		log.Println("ℹ️ Redis not configured, using in-memory limiter and audit outbox")
		return nil
	}

	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unreachable at %s: %v", cfg.Addr, err)
		_ = client.Close()
		return nil
	}

	log.Printf("✅ Redis connected [%s/%d]", cfg.Addr, cfg.DB)
	return client
}
