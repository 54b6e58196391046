package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Endpoint names a rate-limited operation. The limiter keys counters per
// (endpoint, client address) pair.
type Endpoint string

const (
	EndpointRegister Endpoint = "register"
	EndpointLogin    Endpoint = "login"
	EndpointValidate Endpoint = "validate"
)

// Config holds rate limiter tuning parameters. Limits are requests per
// window for a single client address; zero disables the endpoint's limit.
type Config struct {
	Window time.Duration

	MaxRegister int
	MaxLogin    int
	MaxValidate int
}

// Limiter enforces per-address request budgets for authentication endpoints
// using Redis counters. Counters are atomic per key, so multiple service
// instances sharing one Redis enforce one combined budget.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) limitFor(endpoint Endpoint) int {
	switch endpoint {
	case EndpointRegister:
		return l.config.MaxRegister
	case EndpointLogin:
		return l.config.MaxLogin
	case EndpointValidate:
		return l.config.MaxValidate
	default:
		return 0
	}
}

func limiterKey(endpoint Endpoint, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "rl:" + string(endpoint) + ":" + ip
}

// Allow consumes one request from the (endpoint, address) budget. The first
// request past the configured limit — and every one after it until the
// window lapses — returns ErrRateLimited.
func (l *Limiter) Allow(ctx context.Context, endpoint Endpoint, ip string) error {
	limit := l.limitFor(endpoint)
	if limit <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, limiterKey(endpoint, ip), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return ErrRateLimited
	}

	return nil
}

// Attempts returns the current counter for an (endpoint, address) pair.
// Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, endpoint Endpoint, ip string) (int, error) {
	count, err := l.redis.Get(ctx, limiterKey(endpoint, ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for an (endpoint, address) pair. Used by tests
// and operator tooling, never by request paths.
func (l *Limiter) Reset(ctx context.Context, endpoint Endpoint, ip string) error {
	if err := l.redis.Del(ctx, limiterKey(endpoint, ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
