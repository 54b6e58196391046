package speakauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/speaksim/speakauth/userstore"
)

// Profile describes the profile operation and its observable behavior.
//
// Profile may return an error when input validation, dependency calls, or security checks fail.
// Profile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Profile(ctx context.Context, userID string) (*User, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	view := e.publicView(user)
	return &view, nil
}

// UpdateProfile describes the updateprofile operation and its observable behavior.
//
// UpdateProfile may return an error when input validation, dependency calls, or security checks fail.
// UpdateProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Nil fields in the update are left untouched. Non-nil maps replace the
// stored value wholesale rather than merging.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if n := utf8.RuneCountInString(name); n < e.config.Account.MinNameLen || n > e.config.Account.MaxNameLen {
			return nil, fmt.Errorf("%w: name must be between %d and %d characters",
				ErrValidation, e.config.Account.MinNameLen, e.config.Account.MaxNameLen)
		}
		update.Name = &name
	}

	user, err := e.users.UpdateProfile(ctx, userID, update.Name, update.Preferences, update.Profile)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.emitAudit(ctx, auditEventProfileUpdate, true, userID, "", nil, nil)

	view := e.publicView(user)
	return &view, nil
}

// DeactivateAccount describes the deactivateaccount operation and its observable behavior.
//
// DeactivateAccount may return an error when input validation, dependency calls, or security checks fail.
// DeactivateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Deactivation keeps the record so the email stays claimed, and tears
// down every live session for the account.
func (e *Engine) DeactivateAccount(ctx context.Context, userID string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	if _, err := e.users.SetActive(ctx, userID, false); err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := e.LogoutAll(ctx, userID); err != nil {
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, auditEventAccountDeactivated, true, userID, "", nil, nil)

	return nil
}
