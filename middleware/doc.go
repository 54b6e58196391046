// Package middleware exposes HTTP middleware adapters built on top of
// speakauth.Engine validation.
//
// # Guards
//
//   - [Guard] — bearer-token session enforcement for wrapped handlers.
//
// The guard reads the Authorization header, calls Engine.Validate, and
// injects the validated result into the request context, retrievable via
// [AuthResultFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.Validate.
//
// # What this package must NOT do
//
//   - Inspect or decode tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Validate.
package middleware
