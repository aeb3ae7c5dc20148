package config

// Redis backs the shared rate-limit windows when several nodes serve the
// same deployment. If the connection cannot be established at startup the
// caller degrades to the in-memory limiter.

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the given address and verifies the connection
// with a short ping. Returns nil when addr is empty or the ping fails;
// callers treat nil as "no shared limiter available".
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
