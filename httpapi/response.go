package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	speakauth "github.com/speaksim/speakauth"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Status: "ok", Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{Status: "error", Message: publicMessage(err)})
}

// statusFor maps engine errors onto HTTP status codes. Unknown errors
// surface as 500 rather than leaking internals.
func statusFor(err error) int {
	switch {
	case errors.Is(err, speakauth.ErrValidation),
		errors.Is(err, speakauth.ErrPasswordPolicy),
		errors.Is(err, speakauth.ErrPasswordReuse):
		return http.StatusBadRequest
	case errors.Is(err, speakauth.ErrInvalidCredentials),
		errors.Is(err, speakauth.ErrTokenInvalid),
		errors.Is(err, speakauth.ErrAccountDisabled),
		errors.Is(err, speakauth.ErrAccountUnverified),
		errors.Is(err, speakauth.ErrPasswordResetInvalid),
		errors.Is(err, speakauth.ErrEmailVerificationInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, speakauth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, speakauth.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, speakauth.ErrRegisterRateLimited),
		errors.Is(err, speakauth.ErrLoginRateLimited),
		errors.Is(err, speakauth.ErrValidateRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, speakauth.ErrStorageUnavailable),
		errors.Is(err, speakauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, speakauth.ErrValidation),
		errors.Is(err, speakauth.ErrPasswordPolicy),
		errors.Is(err, speakauth.ErrPasswordReuse):
		return err.Error()
	// A disabled account must read exactly like bad credentials, or the
	// response reveals that the email is registered.
	case errors.Is(err, speakauth.ErrInvalidCredentials),
		errors.Is(err, speakauth.ErrAccountDisabled):
		return "invalid credentials"
	case errors.Is(err, speakauth.ErrTokenInvalid),
		errors.Is(err, speakauth.ErrPasswordResetInvalid),
		errors.Is(err, speakauth.ErrEmailVerificationInvalid):
		return "invalid or expired token"
	case errors.Is(err, speakauth.ErrAccountUnverified):
		return "account unverified"
	case errors.Is(err, speakauth.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, speakauth.ErrAccountExists):
		return "account already exists"
	case errors.Is(err, speakauth.ErrRegisterRateLimited),
		errors.Is(err, speakauth.ErrLoginRateLimited),
		errors.Is(err, speakauth.ErrValidateRateLimited):
		return "too many requests"
	case errors.Is(err, speakauth.ErrStorageUnavailable),
		errors.Is(err, speakauth.ErrEngineNotReady):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}
