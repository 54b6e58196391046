package session

// Session defines a public type used by speakauth APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	// TokenDigest is the store key component derived from the issued token.
	// It is populated on read and never contains the token itself.
	TokenDigest string

	UserID string

	UserAgent string
	IPAddress string

	CreatedAt int64
	ExpiresAt int64
}

// Active reports whether the session is valid at the given Unix time. A
// session is rejected starting exactly at its expiry instant.
func (s *Session) Active(nowUnix int64) bool {
	return nowUnix < s.ExpiresAt
}
