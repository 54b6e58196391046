package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	speakauth "github.com/speaksim/speakauth"
	authmw "github.com/speaksim/speakauth/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "malformed request body"})
		return false
	}

	return true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Status: "error", Message: "unhealthy"})
		return
	}

	writeData(w, http.StatusOK, map[string]string{"health": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req speakauth.RegisterRequest
	if !a.decode(w, r, &req) {
		return
	}

	res, err := a.engine.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, res)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds speakauth.Credentials
	if !a.decode(w, r, &creds) {
		return
	}

	res, err := a.engine.Login(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, res)
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}

	if !a.decode(w, r, &req) {
		return
	}

	auth, err := a.engine.Validate(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := a.engine.Profile(r.Context(), auth.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"user":       user,
		"expires_at": auth.ExpiresAt,
	})
}

// handleLogout accepts the token either as a bearer header or in the
// body so clients can revoke a session they no longer treat as valid.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}

	// An empty body is fine here. The header alone is enough.
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "malformed request body"})
		return
	}

	token := req.Token
	if token == "" {
		if t, ok := bearerFromHeader(r); ok {
			token = t
		}
	}

	if token == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "token required"})
		return
	}

	if err := a.engine.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"logout": "ok"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	auth, ok := authmw.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Message: "unauthorized"})
		return
	}

	if err := a.engine.LogoutAll(r.Context(), auth.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"logout": "all"})
}

func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}

	if !a.decode(w, r, &req) {
		return
	}

	token, err := a.engine.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	// Delivery is out of band. The token never appears in the response,
	// and unknown emails get the same answer as known ones.
	if token != "" {
		a.logger.Info("password reset token issued", zap.String("email", req.Email))
	}

	writeData(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a reset link has been sent",
	})
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}

	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"password_reset": "ok"})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	auth, ok := authmw.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Message: "unauthorized"})
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}

	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.ChangePassword(r.Context(), auth.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"password_change": "ok"})
}

func (a *API) handleVerifyEmailRequest(w http.ResponseWriter, r *http.Request) {
	auth, ok := authmw.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Message: "unauthorized"})
		return
	}

	token, err := a.engine.RequestEmailVerification(r.Context(), auth.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	if token != "" {
		a.logger.Info("email verification token issued", zap.String("user_id", auth.UserID))
	}

	writeData(w, http.StatusAccepted, map[string]string{
		"message": "verification email sent",
	})
}

func (a *API) handleVerifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}

	if !a.decode(w, r, &req) {
		return
	}

	if err := a.engine.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"email_verification": "ok"})
}

func (a *API) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	auth, ok := authmw.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Message: "unauthorized"})
		return
	}

	user, err := a.engine.Profile(r.Context(), auth.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

func (a *API) handleProfilePut(w http.ResponseWriter, r *http.Request) {
	auth, ok := authmw.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Message: "unauthorized"})
		return
	}

	var update speakauth.ProfileUpdate
	if !a.decode(w, r, &update) {
		return
	}

	user, err := a.engine.UpdateProfile(r.Context(), auth.UserID, update)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	auth, ok := authmw.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Status: "error", Message: "unauthorized"})
		return
	}

	if err := a.engine.DeactivateAccount(r.Context(), auth.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"account": "deactivated"})
}

func bearerFromHeader(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if len(value) <= len(bearer) || value[:len(bearer)] != bearer {
		return "", false
	}

	return value[len(bearer):], true
}
