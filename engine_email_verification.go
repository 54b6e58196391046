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

// RequestEmailVerification describes the requestemailverification operation and its observable behavior.
//
// RequestEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID string) (string, error) {
	if e == nil || e.users == nil || e.verificationStore == nil {
		return "", ErrEngineNotReady
	}
	if userID == "" {
		return "", ErrUserNotFound
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if user.IsVerified {
		return "", nil
	}

	token, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &stores.ChallengeRecord{
		UserID:    user.ID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.EmailVerification.VerificationTTL).Unix(),
	}
	if err := e.verificationStore.Save(ctx, internal.TokenKey(token), record); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, "", nil, nil)

	return token, nil
}

// ConfirmEmailVerification describes the confirmemailverification operation and its observable behavior.
//
// ConfirmEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if e == nil || e.users == nil || e.verificationStore == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrEmailVerificationInvalid
	}

	record, err := e.verificationStore.Consume(ctx, internal.TokenKey(token))
	if err != nil {
		if errors.Is(err, stores.ErrChallengeNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", "", ErrEmailVerificationInvalid, nil)
			return ErrEmailVerificationInvalid
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if _, err := e.users.SetVerified(ctx, record.UserID, true); err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrEmailVerificationInvalid
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, record.UserID, "", nil, nil)

	return nil
}
