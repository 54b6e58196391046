// Package rate provides Redis-backed fixed-window rate limiting for
// security-sensitive authentication endpoints.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// "rl:<endpoint>:<client address>", so every service instance sharing one
// Redis enforces a single combined budget per address.
//
// # What this package must NOT do
//
//   - Decide which operations are limited or what the budgets are (the
//     Engine's configuration does).
//   - Be imported outside the speakauth module.
package rate
