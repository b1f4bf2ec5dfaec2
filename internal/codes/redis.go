package codes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "roomcode:"

// Config holds configuration for the Redis ledger
type Config struct {
	RedisClient *redis.Client
	// Retention bounds how long a code stays reserved. Zero keeps it forever.
	Retention time.Duration
}

type redisLedger struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedis creates a Redis-backed ledger shared by every server process pointed at the same Redis.
func NewRedis(cfg *Config) (*redisLedger, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &redisLedger{
		client:    cfg.RedisClient,
		retention: cfg.Retention,
	}, nil
}

func (l *redisLedger) Reserve(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, errors.New("code cannot be empty")
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	ok, err := l.client.SetNX(ctx, codeKeyPrefix+code, stamp, l.retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve code: %w", err)
	}
	return ok, nil
}
