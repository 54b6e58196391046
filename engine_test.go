package speakauth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.RateLimit.Enabled = false

	// Floor-level Argon2 cost keeps the suite fast without changing
	// any verification semantics.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, client := newTestRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr
}

func registerTestUser(t *testing.T, e *Engine, email string) *RegisterResult {
	t.Helper()

	res, err := e.Register(context.Background(), RegisterRequest{
		Email:           email,
		Password:        "TestPass123!",
		ConfirmPassword: "TestPass123!",
		Name:            "Test Candidate",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if res.Token == "" {
		t.Fatalf("register %s: no session token issued", email)
	}

	return res
}
