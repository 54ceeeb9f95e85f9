// Package authapi exposes the session and authentication endpoints under
// /api/v1.
//
// The flow is nonce-based challenge-response: GET /api/v1/nonce hands out a
// single-use challenge, POST /api/v1/login consumes it together with the
// bound credential digest, and the resulting session travels in an HttpOnly
// cookie. Refresh, session info, logout and logout-all operate on that
// cookie. Every route class is rate limited per client IP.
package authapi
