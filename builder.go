package speakauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/speaksim/speakauth/internal/rate"
	"github.com/speaksim/speakauth/internal/stores"
	"github.com/speaksim/speakauth/password"
	"github.com/speaksim/speakauth/session"
	"github.com/speaksim/speakauth/userstore"
)

// Builder defines a public type used by speakauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	tokenSource TokenSource
	auditSink   AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithTokenSource describes the withtokensource operation and its observable behavior.
//
// WithTokenSource may return an error when input validation, dependency calls, or security checks fail.
// WithTokenSource does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenSource(source TokenSource) *Builder {
	b.tokenSource = source
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		users:        userstore.NewStore(b.redis, cfg.Account.RedisPrefix),
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
	}

	if cfg.RateLimit.Enabled {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Window:      cfg.RateLimit.Window,
			MaxRegister: cfg.RateLimit.MaxRegister,
			MaxLogin:    cfg.RateLimit.MaxLogin,
			MaxValidate: cfg.RateLimit.MaxValidate,
		})
	}
	if cfg.PasswordReset.Enabled {
		engine.resetStore = stores.NewChallengeStore(b.redis, cfg.PasswordReset.RedisPrefix)
	}
	if cfg.EmailVerification.Enabled {
		engine.verificationStore = stores.NewChallengeStore(b.redis, cfg.EmailVerification.RedisPrefix)
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph
	engine.passwordPolicy = password.Policy{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
	}

	switch {
	case b.tokenSource != nil:
		engine.tokens = b.tokenSource
	case cfg.Token.Mode == "jwt":
		src, err := newJWTTokenSource(cfg.Token, cfg.Session.SessionLifetime)
		if err != nil {
			return nil, err
		}
		engine.tokens = src
	default:
		engine.tokens = opaqueTokenSource{}
	}

	b.built = true

	return engine, nil
}
