package speakauth

import (
	"time"

	"github.com/speaksim/speakauth/internal"
	"github.com/speaksim/speakauth/jwt"
)

// opaqueTokenSource issues random bearer tokens with no embedded claims.
// The session store is the single source of truth for their validity.
type opaqueTokenSource struct{}

func (opaqueTokenSource) Issue(string, string) (string, error) {
	return internal.NewToken()
}

// jwtTokenSource issues signed tokens carrying the user ID and email.
// Validation still goes through the session store, so revocation works
// the same way as for opaque tokens.
type jwtTokenSource struct {
	manager *jwt.Manager
}

func (s *jwtTokenSource) Issue(userID, email string) (string, error) {
	return s.manager.Create(userID, email)
}

func newJWTTokenSource(cfg TokenConfig, lifetime time.Duration) (*jwtTokenSource, error) {
	m, err := jwt.NewManager(jwt.Config{
		TTL:           lifetime,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cloneBytes(cfg.SigningKey),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
	})
	if err != nil {
		return nil, err
	}
	return &jwtTokenSource{manager: m}, nil
}
