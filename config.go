package speakauth

import (
	"errors"
	"time"
)

// Config defines a public type used by speakauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session           SessionConfig
	Token             TokenConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Account           AccountConfig
	RateLimit         RateLimitConfig
	Sweep             SweepConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by speakauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix     string
	SessionLifetime time.Duration
	MaxUserAgentLen int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by speakauth APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	Mode       string // "opaque" (default) or "jwt"
	SigningKey []byte // required in jwt mode
	Issuer     string
	Audience   string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by speakauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	MinLength      int
	MaxLength      int
}

// PasswordResetConfig defines a public type used by speakauth APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled     bool
	RedisPrefix string
	ResetTTL    time.Duration
}

// EmailVerificationConfig defines a public type used by speakauth APIs.
//
// EmailVerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationConfig struct {
	Enabled         bool
	RedisPrefix     string
	VerificationTTL time.Duration
	RequireForLogin bool
}

// AccountConfig defines a public type used by speakauth APIs.
//
// AccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	RedisPrefix  string
	MinNameLen   int
	MaxNameLen   int
	MaxEmailLen  int
	AutoActivate bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by speakauth APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxRegister int
	MaxLogin    int
	MaxValidate int
}

/*
====================================
SWEEP CONFIG
====================================
*/

// SweepConfig defines a public type used by speakauth APIs.
//
// SweepConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SweepConfig struct {
	Interval time.Duration
}

// AuditConfig defines a public type used by speakauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by speakauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:     "ss",
			SessionLifetime: 30 * 24 * time.Hour,
			MaxUserAgentLen: 255,
		},
		Token: TokenConfig{
			Mode:     "opaque",
			Issuer:   "speakauth",
			Audience: "api",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			MinLength:      8,
			MaxLength:      128,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:     true,
			RedisPrefix: "pr",
			ResetTTL:    24 * time.Hour,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:         true,
			RedisPrefix:     "ev",
			VerificationTTL: 24 * time.Hour,
			RequireForLogin: false,
		},
		Account: AccountConfig{
			RedisPrefix:  "u",
			MinNameLen:   2,
			MaxNameLen:   100,
			MaxEmailLen:  255,
			AutoActivate: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Window:      time.Minute,
			MaxRegister: 3,
			MaxLogin:    5,
			MaxValidate: 10,
		},
		Sweep: SweepConfig{
			Interval: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningKey = cloneBytes(cfg.Token.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if c.Session.SessionLifetime <= 0 {
		return errors.New("Session SessionLifetime must be > 0")
	}
	if c.Session.MaxUserAgentLen <= 0 || c.Session.MaxUserAgentLen > 255 {
		return errors.New("Session MaxUserAgentLen must be between 1 and 255")
	}

	// Token
	switch c.Token.Mode {
	case "opaque":
		// valid
	case "jwt":
		if len(c.Token.SigningKey) < 32 {
			return errors.New("Token jwt mode requires SigningKey length >= 256 bits")
		}
		if c.Token.Issuer == "" {
			return errors.New("Token jwt mode requires Issuer")
		}
	default:
		return errors.New("Token Mode must be 'opaque' or 'jwt'")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Password Reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.RedisPrefix == "" {
			return errors.New("PasswordReset RedisPrefix is required when reset is enabled")
		}
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("PasswordReset ResetTTL must be > 0")
		}
	}

	// Email Verification
	if c.EmailVerification.Enabled {
		if c.EmailVerification.RedisPrefix == "" {
			return errors.New("EmailVerification RedisPrefix is required when verification is enabled")
		}
		if c.EmailVerification.VerificationTTL <= 0 {
			return errors.New("EmailVerification VerificationTTL must be > 0")
		}
	}
	if c.EmailVerification.RequireForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequireForLogin requires EmailVerification Enabled")
	}

	// Account
	if c.Account.RedisPrefix == "" {
		return errors.New("Account RedisPrefix is required")
	}
	if c.Account.MinNameLen <= 0 {
		return errors.New("Account MinNameLen must be > 0")
	}
	if c.Account.MaxNameLen < c.Account.MinNameLen {
		return errors.New("Account MaxNameLen must be >= MinNameLen")
	}
	if c.Account.MaxEmailLen <= 0 {
		return errors.New("Account MaxEmailLen must be > 0")
	}

	// Prefix collisions corrupt key scans, so every store must own a
	// distinct namespace.
	prefixes := map[string]bool{}
	for _, p := range []string{
		c.Session.RedisPrefix,
		c.Account.RedisPrefix,
		c.PasswordReset.RedisPrefix,
		c.EmailVerification.RedisPrefix,
	} {
		if p == "" {
			continue
		}
		if prefixes[p] {
			return errors.New("Redis prefixes must be distinct across stores")
		}
		prefixes[p] = true
	}

	// Rate Limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.MaxRegister < 0 || c.RateLimit.MaxLogin < 0 || c.RateLimit.MaxValidate < 0 {
			return errors.New("RateLimit quotas must be >= 0")
		}
	}

	// Sweep
	if c.Sweep.Interval < 0 {
		return errors.New("Sweep Interval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
