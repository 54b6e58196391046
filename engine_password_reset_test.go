package speakauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetFlow(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	reg := registerTestUser(t, e, "reset@example.com")

	token, err := e.RequestPasswordReset(ctx, "reset@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token for a known account")
	}

	if err := e.ConfirmPasswordReset(ctx, token, "NewTestPass123!", "NewTestPass123!"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	// Reset invalidates every live session.
	if _, err := e.Validate(ctx, reg.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("session survived reset: %v", err)
	}
	if _, err := e.Login(ctx, Credentials{Email: "reset@example.com", Password: "NewTestPass123!"}); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}
	if _, err := e.Login(ctx, Credentials{Email: "reset@example.com", Password: "TestPass123!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	token, err := e.RequestPasswordReset(ctx, "ghost@example.com")
	if err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if token != "" {
		t.Fatalf("unknown email produced a token: %q", token)
	}
}

func TestPasswordResetTokenSingleUse(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	registerTestUser(t, e, "once@example.com")

	token, err := e.RequestPasswordReset(ctx, "once@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	if err := e.ConfirmPasswordReset(ctx, token, "NewTestPass123!", "NewTestPass123!"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := e.ConfirmPasswordReset(ctx, token, "OtherTestPass123!", "OtherTestPass123!"); !errors.Is(err, ErrPasswordResetInvalid) {
		t.Fatalf("second confirm: got %v, want ErrPasswordResetInvalid", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	e, mr := newTestEngine(t, func(cfg *Config) {
		cfg.PasswordReset.ResetTTL = time.Minute
	})
	ctx := context.Background()

	registerTestUser(t, e, "stale@example.com")

	token, err := e.RequestPasswordReset(ctx, "stale@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	mr.FastForward(time.Minute)

	if err := e.ConfirmPasswordReset(ctx, token, "NewTestPass123!", "NewTestPass123!"); !errors.Is(err, ErrPasswordResetInvalid) {
		t.Fatalf("got %v, want ErrPasswordResetInvalid", err)
	}
}

func TestPasswordResetConfirmValidatesPolicyFirst(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	registerTestUser(t, e, "policyfirst@example.com")

	token, err := e.RequestPasswordReset(ctx, "policyfirst@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	// Neither a policy failure nor a confirmation mismatch may burn the
	// single-use token.
	if err := e.ConfirmPasswordReset(ctx, token, "NoSymbol123", "NoSymbol123"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("got %v, want ErrPasswordPolicy", err)
	}
	if err := e.ConfirmPasswordReset(ctx, token, "NewTestPass123!", "OtherTestPass123!"); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if err := e.ConfirmPasswordReset(ctx, token, "NewTestPass123!", "NewTestPass123!"); err != nil {
		t.Fatalf("token consumed by rejected attempt: %v", err)
	}
}

func TestPasswordResetBogusToken(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "bogus"} {
		if err := e.ConfirmPasswordReset(ctx, token, "NewTestPass123!", "NewTestPass123!"); !errors.Is(err, ErrPasswordResetInvalid) {
			t.Fatalf("token %q: got %v, want ErrPasswordResetInvalid", token, err)
		}
	}
}
