// Package password provides Argon2id password hashing and verification.
//
// Hash strings use the PHC encoded format and are treated as untrusted input
// during Verify: decoding is strict and verification refuses hashes whose
// parameters exceed reasonable bounds (anti-DoS).
//
// Parameter tuning is deliberately fixed; this application consumes hashing
// as an opaque capability.
package password
