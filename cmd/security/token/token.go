package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// BindDigestToNonce derives the value a login client is expected to submit:
// HMAC-SHA256 of the stored credential digest keyed by the nonce. The nonce
// is single-use, so the bound digest is worthless for replay.
func BindDigestToNonce(credentialDigest, nonce string) string {
	return HashHMACSHA256Hex(credentialDigest, []byte(nonce))
}

// SecureEqualHex compares two hex digests in constant time.
// Mismatched lengths return false without leaking timing.
func SecureEqualHex(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
