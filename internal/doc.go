// Package internal contains helper utilities that are intentionally private to speakauth,
// including secure random token generation and token digest helpers.
//
// # Sub-packages
//
//   - rate — Redis-backed fixed-window rate limit primitives
//   - stores — single-use challenge stores (password reset, email verification)
//
// # What this package must NOT do
//
//   - Export types that appear in the public speakauth API.
//   - Be imported by any package outside the speakauth module.
package internal
