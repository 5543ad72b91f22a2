package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend names accepted by SESSION_BACKEND.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// FromEnv builds a Memory from environment variables.
//
// Environment variables:
//
//	SESSION_BACKEND       = redis | memory (default: redis when REDIS_ADDR is set, else memory)
//	REDIS_ADDR            host:port of the Redis server
//	REDIS_PASSWORD        optional
//	REDIS_DB              (default: 0)
//	SESSION_TTL           (default: 2h)
//	SESSION_MAX_MESSAGES  (default: 10)
func FromEnv(ctx context.Context) (Memory, error) {
	cfg := Config{
		TTL:         getEnvDuration("SESSION_TTL", DefaultTTL),
		MaxMessages: getEnvInt("SESSION_MAX_MESSAGES", DefaultMaxMessages),
	}

	backend := os.Getenv("SESSION_BACKEND")
	if backend == "" {
		backend = BackendMemory
		if os.Getenv("REDIS_ADDR") != "" {
			backend = BackendRedis
		}
	}

	switch backend {
	case BackendMemory:
		return NewLocalMemory(cfg), nil
	case BackendRedis:
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		return NewRedisMemory(ctx, RedisConfig{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			Config:   cfg,
		})
	default:
		return nil, fmt.Errorf("session: unknown backend %q, valid values: redis, memory", backend)
	}
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
