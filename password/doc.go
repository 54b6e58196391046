// Package password implements password hashing with Argon2id and the
// account password strength policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Argon2] hasher supports transparent parameter upgrades: if the stored
// hash was produced with weaker parameters, [Argon2.NeedsUpgrade] returns true
// so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and the strength [Policy]. Where
// and when the policy applies (registration, reset, change) is decided by the
// Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other speakauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
