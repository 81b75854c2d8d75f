package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yeremiapane/library-seat-app/utils"
)

// NewRedisClient returns nil when REDIS_ADDR is empty or the server does not
// answer a ping. Callers fall back to in-process rate limiting and skip
// response caching.
func NewRedisClient(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		utils.ErrorLogger.Printf("Redis unavailable at %s: %v", cfg.RedisAddr, err)
		_ = client.Close()
		return nil
	}
	utils.InfoLogger.Printf("Connected to Redis at %s", cfg.RedisAddr)
	return client
}
