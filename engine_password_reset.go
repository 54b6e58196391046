package speakauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/speaksim/speakauth/internal"
	"github.com/speaksim/speakauth/internal/stores"
	"github.com/speaksim/speakauth/userstore"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Unknown emails return an empty token and no error so that callers can
// answer identically whether or not the account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil || e.users == nil || e.resetStore == nil {
		return "", ErrEngineNotReady
	}

	normalized, err := e.normalizeEmail(email)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	user, err := e.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			e.metricInc(MetricPasswordResetRequest)
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
				return map[string]string{
					"known_account": "false",
				}
			})
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	token, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &stores.ChallengeRecord{
		UserID:    user.ID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.PasswordReset.ResetTTL).Unix(),
	}
	if err := e.resetStore.Save(ctx, internal.TokenKey(token), record); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"known_account": "true",
		}
	})

	return token, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A reset token is single use. Consuming it updates the password hash
// and invalidates every session belonging to the account. Validation
// failures, including a confirmation mismatch, leave the token intact.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirmPassword string) error {
	if e == nil || e.users == nil || e.resetStore == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrPasswordResetInvalid
	}

	if confirmPassword != newPassword {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	if err := e.passwordPolicy.Check(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	record, err := e.resetStore.Consume(ctx, internal.TokenKey(token))
	if err != nil {
		if errors.Is(err, stores.ErrChallengeNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordResetInvalid, nil)
			return ErrPasswordResetInvalid
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	newPassword = ""

	if _, err := e.users.UpdatePasswordHash(ctx, record.UserID, hash); err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return ErrPasswordResetInvalid
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := e.LogoutAll(ctx, record.UserID); err != nil {
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, record.UserID, "", nil, nil)

	return nil
}
