// Package userstore provides the Redis-backed credential store: durable user
// records with a unique, case-insensitive email index.
//
// # Layout
//
// Each user is a JSON document at "<prefix>:<user id>". A separate index key
// "<prefix>e:<lowercased email>" holds the user id and is claimed with SETNX
// inside the create transaction, so two concurrent registrations of the same
// email produce exactly one user — the loser observes ErrEmailTaken.
//
// # Architecture boundaries
//
// This package owns persistence of user records only. Password hashing,
// policy, and normalization rules are the Engine's responsibility; the store
// receives already-validated input.
//
// # What this package must NOT do
//
//   - Import speakauth or any of its other sub-packages.
//   - Store or compare plaintext passwords.
//   - Interpret the preferences/profile payloads it persists.
package userstore
