// Package token provides digest primitives shared by the auth core.
//
// It is the single source of truth for credential-digest and fingerprint
// hashing behavior:
// - SHA-256 hex digests for device fingerprints.
// - HMAC-SHA256 hex digests for nonce-bound login credentials.
//
// Output is stable 64-char hex, suitable for storage and constant-time
// comparison.
package token
