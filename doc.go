// Package speakauth provides the authentication engine for the speaking-exam
// platform: credential storage, opaque bearer sessions, password reset and
// email verification challenges, all backed by Redis.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// speakauth is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (User, Credentials, MetricsSnapshot, etc.). Storage details — session encoding,
// challenge stores, rate limit counters — live under internal/ and the store
// sub-packages and are never part of the public API.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports speakauth (no import cycles).
//
// # Performance contract
//
// Validate is the hot path. It is allowed two Redis round-trips per call, one for the
// session record and one for the account's active flag, and must not allocate beyond
// the returned AuthResult value. Login and registration are bounded by
// the argon2 hashing cost, not by store access.
package speakauth
