package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const tokenSecretSize = 32

// TokenSecret is the raw entropy behind an issued bearer or challenge token.
type TokenSecret [tokenSecretSize]byte

func NewTokenSecret() (TokenSecret, error) {
	var secret TokenSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

func (s TokenSecret) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// NewToken returns a fresh opaque token in its wire form.
func NewToken() (string, error) {
	secret, err := NewTokenSecret()
	if err != nil {
		return "", err
	}
	return secret.String(), nil
}

// HashToken is the digest stores key records by. The raw token never touches
// Redis.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// TokenKey renders HashToken output as a compact Redis key component.
func TokenKey(token string) string {
	digest := HashToken(token)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
