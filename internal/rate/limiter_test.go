package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := New(rdb, Config{
		Window:      time.Minute,
		MaxRegister: 3,
		MaxLogin:    5,
		MaxValidate: 10,
	})
	return limiter, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestAllowEnforcesBudgets(t *testing.T) {
	limiter, _, done := newLimiterTest(t)
	defer done()
	ctx := context.Background()

	cases := []struct {
		endpoint Endpoint
		limit    int
	}{
		{EndpointRegister, 3},
		{EndpointLogin, 5},
		{EndpointValidate, 10},
	}

	for _, tc := range cases {
		for i := 0; i < tc.limit; i++ {
			if err := limiter.Allow(ctx, tc.endpoint, "203.0.113.1"); err != nil {
				t.Fatalf("%s attempt %d should pass: %v", tc.endpoint, i+1, err)
			}
		}
		if err := limiter.Allow(ctx, tc.endpoint, "203.0.113.1"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s attempt %d should be limited, got %v", tc.endpoint, tc.limit+1, err)
		}
	}
}

func TestAllowIsolatesClients(t *testing.T) {
	limiter, _, done := newLimiterTest(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, EndpointRegister, "203.0.113.1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, EndpointRegister, "203.0.113.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected first client limited, got %v", err)
	}

	// A different address has its own budget.
	if err := limiter.Allow(ctx, EndpointRegister, "203.0.113.2"); err != nil {
		t.Fatalf("second client should not be limited: %v", err)
	}
}

func TestWindowExpiryResetsBudget(t *testing.T) {
	limiter, mr, done := newLimiterTest(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, EndpointRegister, "203.0.113.1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, EndpointRegister, "203.0.113.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if err := limiter.Allow(ctx, EndpointRegister, "203.0.113.1"); err != nil {
		t.Fatalf("expected fresh window to pass: %v", err)
	}
}

func TestMissingAddressSharesFallbackBucket(t *testing.T) {
	limiter, _, done := newLimiterTest(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, EndpointRegister, ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, EndpointRegister, ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected fallback bucket limited, got %v", err)
	}
}

func TestAttemptsAndReset(t *testing.T) {
	limiter, _, done := newLimiterTest(t)
	defer done()
	ctx := context.Background()

	count, err := limiter.Attempts(ctx, EndpointLogin, "203.0.113.1")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero attempts, got %d", count)
	}

	for i := 0; i < 2; i++ {
		if err := limiter.Allow(ctx, EndpointLogin, "203.0.113.1"); err != nil {
			t.Fatalf("allow: %v", err)
		}
	}

	count, err = limiter.Attempts(ctx, EndpointLogin, "203.0.113.1")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts, got %d", count)
	}

	if err := limiter.Reset(ctx, EndpointLogin, "203.0.113.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	count, err = limiter.Attempts(ctx, EndpointLogin, "203.0.113.1")
	if err != nil {
		t.Fatalf("attempts after reset: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero after reset, got %d", count)
	}
}
