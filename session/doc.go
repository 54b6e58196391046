// Package session provides Redis-backed session persistence and compact binary session
// encoding for authentication hot paths.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary blob with a leading schema
// version byte. The encoder is append-only: new versions add fields but never
// reinterpret old ones.
//
// # Keying
//
// Records are keyed by the SHA-256 digest of the issued bearer token; the
// token itself is never written to Redis. A per-user set of digests supports
// logout-all, and a tracked counter approximates the live session total.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// mint tokens, verify credentials, or enforce authentication policy — those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import speakauth or any of its other sub-packages (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext tokens or secrets in [Session] fields.
package session
