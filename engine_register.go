package speakauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/speaksim/speakauth/internal/rate"
	"github.com/speaksim/speakauth/userstore"
)

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// When two concurrent requests race on the same email, exactly one
// account wins; the loser observes [ErrAccountExists]. A session issue
// failure after the account was created does not roll the account back;
// the result carries an empty token and the caller can log in normally.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.passwordHash == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Allow(ctx, rate.EndpointRegister, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRegisterRateLimited)
				e.emitAudit(ctx, auditEventRegisterRateLimited, false, "", "", ErrRegisterRateLimited, nil)
				e.emitRateLimit(ctx, "register", nil)
				return nil, ErrRegisterRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	email, err := e.normalizeEmail(req.Email)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrValidation, func() map[string]string {
			return map[string]string{
				"reason": "malformed_email",
			}
		})
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < e.config.Account.MinNameLen || n > e.config.Account.MaxNameLen {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrValidation, func() map[string]string {
			return map[string]string{
				"reason": "name_length",
			}
		})
		return nil, fmt.Errorf("%w: name must be between %d and %d characters",
			ErrValidation, e.config.Account.MinNameLen, e.config.Account.MaxNameLen)
	}

	if req.ConfirmPassword != req.Password {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrValidation, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	if err := e.passwordPolicy.Check(req.Password); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "password_policy",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	req.Password = ""

	record := &userstore.Record{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    time.Now().Unix(),
		IsVerified:   false,
		IsActive:     e.config.Account.AutoActivate,
		Preferences:  req.Preferences,
		Profile:      req.Profile,
	}

	if err := e.users.Create(ctx, record); err != nil {
		if errors.Is(err, userstore.ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	result := &RegisterResult{
		User: e.publicView(record),
	}

	token, digest, err := e.issueSession(ctx, record)
	if err != nil {
		log.Print("speakauth: session issue failed after registration")
		e.emitAudit(ctx, auditEventRegisterSuccess, true, record.ID, "", ErrSessionCreationFailed, func() map[string]string {
			return map[string]string{
				"reason": "session_save_failed",
			}
		})
		e.metricInc(MetricRegisterSuccess)
		return result, nil
	}
	result.Token = token

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, record.ID, digest, nil, nil)

	return result, nil
}
