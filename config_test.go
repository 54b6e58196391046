package speakauth

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero session lifetime", func(c *Config) { c.Session.SessionLifetime = 0 }},
		{"empty session prefix", func(c *Config) { c.Session.RedisPrefix = "" }},
		{"duplicate prefixes", func(c *Config) { c.PasswordReset.RedisPrefix = c.Session.RedisPrefix }},
		{"argon2 memory floor", func(c *Config) { c.Password.Memory = 1024 }},
		{"argon2 zero time", func(c *Config) { c.Password.Time = 0 }},
		{"salt too short", func(c *Config) { c.Password.SaltLength = 8 }},
		{"min length floor", func(c *Config) { c.Password.MinLength = 4 }},
		{"max below min", func(c *Config) { c.Password.MaxLength = c.Password.MinLength - 1 }},
		{"unknown token mode", func(c *Config) { c.Token.Mode = "paseto" }},
		{"jwt without key", func(c *Config) { c.Token.Mode = "jwt"; c.Token.SigningKey = nil }},
		{"jwt short key", func(c *Config) { c.Token.Mode = "jwt"; c.Token.SigningKey = []byte("short") }},
		{"rate window zero", func(c *Config) { c.RateLimit.Window = 0 }},
		{"rate quota negative", func(c *Config) { c.RateLimit.MaxRegister = -1 }},
		{"reset ttl zero", func(c *Config) { c.PasswordReset.ResetTTL = 0 }},
		{"verification ttl zero", func(c *Config) { c.EmailVerification.VerificationTTL = 0 }},
		{"name bounds inverted", func(c *Config) { c.Account.MinNameLen = 50; c.Account.MaxNameLen = 10 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestCloneConfigIsolatesSigningKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Token.SigningKey = []byte("0123456789abcdef0123456789abcdef")

	clone := cloneConfig(cfg)
	clone.Token.SigningKey[0] = 'X'

	if cfg.Token.SigningKey[0] == 'X' {
		t.Fatal("clone shares signing key backing array")
	}
}

func TestDefaultConfigExportedCopy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.SessionLifetime = time.Hour

	if defaultConfig().Session.SessionLifetime == time.Hour {
		t.Fatal("mutating a returned config leaked into defaults")
	}
}
