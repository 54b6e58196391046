// Package jwt manages signed session-token issuance and verification using configured
// signing keys and strict validation semantics. Token payloads carry only the user's
// identity (user id and email).
package jwt
