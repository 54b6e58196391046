// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive authentication flows: password reset and email
// verification challenges.
//
// # Design
//
// Each record is a versioned binary blob in Redis with a TTL, keyed by the
// SHA-256 digest of the issued token. Consume uses a WATCH/MULTI optimistic
// transaction with automatic retry on contention, so a token redeems for
// exactly one caller. Records are single-use: deleted in the same
// transaction that returns them.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// challenge records. It does NOT generate tokens, enforce rate limits, or
// make authentication decisions — those responsibilities belong to the
// Engine.
//
// # What this package must NOT do
//
//   - Import speakauth or any sibling internal package.
//   - Log or expose plaintext tokens.
package stores
