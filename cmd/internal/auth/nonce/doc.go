// Package nonce issues single-use login challenges.
//
// A nonce binds one login attempt to one server-issued random value. The
// client mixes the nonce into its credential digest, so a captured login
// body cannot be replayed: consuming a nonce removes it, and expired nonces
// are rejected and purged.
package nonce
