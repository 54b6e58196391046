package speakauth

// User is the public account view returned by the engine. It never
// carries the password hash.
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	CreatedAt   int64          `json:"created_at"`
	LastLogin   int64          `json:"last_login,omitempty"`
	IsVerified  bool           `json:"is_verified"`
	IsActive    bool           `json:"is_active"`
	Preferences map[string]any `json:"preferences,omitempty"`
	Profile     map[string]any `json:"profile,omitempty"`
}

// RegisterRequest is the input for [Engine.Register]. Email, Password,
// ConfirmPassword, and Name are required; Preferences and Profile are
// optional and are stored as-is when present. ConfirmPassword must
// repeat Password exactly.
type RegisterRequest struct {
	Email           string         `json:"email"`
	Password        string         `json:"password"`
	ConfirmPassword string         `json:"confirm_password"`
	Name            string         `json:"name"`
	Preferences     map[string]any `json:"preferences,omitempty"`
	Profile         map[string]any `json:"profile,omitempty"`
}

// Credentials is the input for [Engine.Login].
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult is returned by [Engine.Register]. It includes the new
// account's public view and a freshly issued session token.
type RegisterResult struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// AuthResult is returned by [Engine.Validate]. It identifies the
// session owner without touching the credential store.
type AuthResult struct {
	UserID    string `json:"user_id"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// ProfileUpdate is the input for [Engine.UpdateProfile]. Nil fields are
// left untouched; non-nil maps replace the stored value wholesale.
type ProfileUpdate struct {
	Name        *string        `json:"name,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	Profile     map[string]any `json:"profile,omitempty"`
}

// TokenSource produces session tokens. The default source emits opaque
// random tokens; [jwt.Manager] can be adapted to satisfy it when signed
// tokens are preferred. Tokens are never stored verbatim server-side.
type TokenSource interface {
	Issue(userID, email string) (string, error)
}
