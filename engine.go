package speakauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/speaksim/speakauth/internal"
	"github.com/speaksim/speakauth/internal/rate"
	"github.com/speaksim/speakauth/internal/stores"
	"github.com/speaksim/speakauth/password"
	"github.com/speaksim/speakauth/session"
	"github.com/speaksim/speakauth/userstore"
)

// Engine defines a public type used by speakauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config            Config
	users             *userstore.Store
	sessionStore      *session.Store
	rateLimiter       *rate.Limiter
	resetStore        *stores.ChallengeStore
	verificationStore *stores.ChallengeStore
	audit             *auditDispatcher
	metrics           *Metrics
	passwordHash      *password.Argon2
	passwordPolicy    password.Policy
	tokens            TokenSource
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Allow(ctx, rate.EndpointLogin, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, nil)
				e.emitRateLimit(ctx, "login", nil)
				return nil, ErrLoginRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	email, err := e.normalizeEmail(creds.Email)
	if err != nil || creds.Password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "malformed_credentials",
			}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"reason": "user_not_found",
				}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(creds.Password, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}
	if e.config.EmailVerification.RequireForLogin && !user.IsVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountUnverified, nil)
		return nil, ErrAccountUnverified
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(creds.Password); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if _, err := e.users.UpdatePasswordHash(ctx, user.ID, upgradedHash); err != nil {
					log.Print("speakauth: password hash upgrade update failed")
				}
			} else {
				log.Print("speakauth: password hash upgrade generation failed")
			}
		}
	}
	creds.Password = ""

	if updated, err := e.users.RecordLogin(ctx, user.ID, time.Now()); err == nil {
		user = updated
	} else {
		log.Print("speakauth: last login stamp update failed")
	}

	token, digest, err := e.issueSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrSessionCreationFailed, func() map[string]string {
			return map[string]string{
				"reason": "session_save_failed",
			}
		})
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, digest, nil, nil)

	return &LoginResult{
		User:  e.publicView(user),
		Token: token,
	}, nil
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Validate(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil || e.sessionStore == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Allow(ctx, rate.EndpointValidate, clientIPFromContext(ctx)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricValidateRateLimited)
				e.emitAudit(ctx, auditEventValidateRateLimited, false, "", "", ErrValidateRateLimited, nil)
				e.emitRateLimit(ctx, "validate", nil)
				return nil, ErrValidateRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	if token == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessionStore.Get(ctx, internal.TokenKey(token))
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil):
			e.metricInc(MetricValidateFailure)
			e.emitAudit(ctx, auditEventValidateFailure, false, "", "", ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		case errors.Is(err, session.ErrRedisUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		default:
			e.metricInc(MetricValidateFailure)
			return nil, ErrTokenInvalid
		}
	}

	user, err := e.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			e.metricInc(MetricValidateFailure)
			e.emitAudit(ctx, auditEventValidateFailure, false, sess.UserID, "", ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !user.IsActive {
		// A session that outlived its account's deactivation dies here.
		if err := e.sessionStore.Delete(ctx, internal.TokenKey(token)); err != nil {
			log.Print("speakauth: disabled account session cleanup failed")
		}
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, false, sess.UserID, "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "account_disabled",
			}
		})
		return nil, ErrTokenInvalid
	}

	e.metricInc(MetricValidateSuccess)

	return &AuthResult{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrTokenInvalid
	}

	digest := internal.TokenKey(token)
	err := e.sessionStore.Delete(ctx, digest)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", digest, ErrSessionInvalidationFailed, nil)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutSession, true, "", digest, nil, nil)
	return nil
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, userID, "", ErrSessionInvalidationFailed, nil)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" || newPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrValidation, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrValidation
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	oldOK, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, userID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	samePassword, err := e.passwordHash.Verify(newPassword, user.PasswordHash)
	if err == nil && samePassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, userID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	if err := e.passwordPolicy.Check(newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordPolicy, nil)
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	if _, err := e.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	oldPassword = ""
	newPassword = ""

	if err := e.LogoutAll(ctx, userID); err != nil {
		log.Print("speakauth: session invalidation failed after password change")
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, "", nil, nil)

	return nil
}

// Health describes the health operation and its observable behavior.
//
// Health may return an error when input validation, dependency calls, or security checks fail.
// Health does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Health(ctx context.Context) error {
	if e == nil || e.sessionStore == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if _, err := e.sessionStore.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if _, err := e.users.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (e *Engine) issueSession(ctx context.Context, user *userstore.Record) (string, string, error) {
	if e.tokens == nil || e.sessionStore == nil {
		return "", "", ErrEngineNotReady
	}

	token, err := e.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	digest := internal.TokenKey(token)

	ua := userAgentFromContext(ctx)
	if limit := e.config.Session.MaxUserAgentLen; len(ua) > limit {
		ua = ua[:limit]
	}

	now := time.Now()
	sess := &session.Session{
		TokenDigest: digest,
		UserID:      user.ID,
		UserAgent:   ua,
		IPAddress:   clientIPFromContext(ctx),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(e.config.Session.SessionLifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess); err != nil {
		return "", "", err
	}

	return token, digest, nil
}

func (e *Engine) publicView(rec *userstore.Record) User {
	return User{
		ID:          rec.ID,
		Email:       rec.Email,
		Name:        rec.Name,
		CreatedAt:   rec.CreatedAt,
		LastLogin:   rec.LastLogin,
		IsVerified:  rec.IsVerified,
		IsActive:    rec.IsActive,
		Preferences: rec.Preferences,
		Profile:     rec.Profile,
	}
}

func (e *Engine) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > e.config.Account.MaxEmailLen {
		return "", ErrValidation
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrValidation
	}
	return email, nil
}
