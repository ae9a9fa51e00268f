// Package keyvalue holds the process-lifetime Redis client setup. The
// client is constructed once in main and injected where needed; nothing
// in this codebase reaches for an ambient global connection.
package keyvalue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// ConfigFromEnv reads Redis config from environment variables
func ConfigFromEnv() Config {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		// default local
		url = "redis://localhost:6379/0"
	}
	return Config{URL: url, Timeout: 5 * time.Second}
}

// Connect opens a Redis client and verifies connectivity with a ping.
func Connect(cfg Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
