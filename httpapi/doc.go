// Package httpapi exposes the authentication engine over HTTP.
//
// # Endpoints
//
//	POST /api/auth/register
//	POST /api/auth/login
//	POST /api/auth/logout
//	POST /api/auth/logout-all
//	POST /api/auth/validate
//	POST /api/auth/password-reset/request
//	POST /api/auth/password-reset/confirm
//	POST /api/auth/change-password
//	POST /api/auth/verify-email/request
//	POST /api/auth/verify-email/confirm
//	GET  /api/auth/profile
//	PUT  /api/auth/profile
//	POST /api/auth/deactivate
//	GET  /health
//
// Every response uses a uniform JSON envelope with status, message, and
// an optional data payload. Engine errors map onto HTTP status codes:
// validation failures become 400, credential and token failures 401,
// duplicate accounts 409, rate limits 429, and storage outages 503.
//
// # Architecture boundaries
//
// This package translates HTTP requests into Engine calls and Engine
// errors into status codes. It does NOT touch Redis, hash passwords, or
// make authentication decisions of its own.
package httpapi
