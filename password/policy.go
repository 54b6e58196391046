package password

import (
	"errors"
	"strings"
)

// Symbols is the set of characters that satisfy the special-character rule.
const Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Policy defines a public type used by speakauth APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy returns the platform baseline: 8–128 characters with at least
// one uppercase letter, one lowercase letter, one digit, and one symbol.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: 128}
}

var (
	ErrTooShort  = errors.New("password is too short")
	ErrTooLong   = errors.New("password is too long")
	ErrNoUpper   = errors.New("password must contain an uppercase letter")
	ErrNoLower   = errors.New("password must contain a lowercase letter")
	ErrNoDigit   = errors.New("password must contain a digit")
	ErrNoSpecial = errors.New("password must contain a special character")
)

// Check describes the check operation and its observable behavior.
//
// Check may return an error when input validation, dependency calls, or security checks fail.
// Check does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p Policy) Check(password string) error {
	// Length is measured in bytes exactly as provided (no Unicode normalization).
	if len(password) < p.MinLength {
		return ErrTooShort
	}
	if len(password) > p.MaxLength {
		return ErrTooLong
	}

	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(Symbols, c):
			special = true
		}
	}

	switch {
	case !upper:
		return ErrNoUpper
	case !lower:
		return ErrNoLower
	case !digit:
		return ErrNoDigit
	case !special:
		return ErrNoSpecial
	}

	return nil
}
