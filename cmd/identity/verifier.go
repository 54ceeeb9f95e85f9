package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/security/password"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/security/token"
)

// CredentialVerifier verifies a submitted login credential.
//
// submitted is what the client sent in the login body: normally the stored
// credential digest bound to the single-use nonce
// (token.BindDigestToNonce), or the raw password for accounts that only
// carry an Argon2id hash.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, email, submitted, nonce string) (User, error)
}

type account struct {
	user User

	// Exactly one of these is set.
	// credentialDigest is a 64-char hex SHA-256 digest the client can
	// reproduce, enabling nonce-bound challenge-response.
	// passwordHash is a PHC Argon2id string verified against the raw
	// password.
	credentialDigest string
	passwordHash     string
}

// MemoryVerifier is an in-memory CredentialVerifier for tests and dev.
type MemoryVerifier struct {
	mu       sync.RWMutex
	accounts map[string]account

	// dummyHash keeps verification work roughly constant when the account
	// does not exist, so absent users are not cheaper to probe.
	dummyHash string
}

// NewMemoryVerifier constructs an empty MemoryVerifier.
func NewMemoryVerifier() *MemoryVerifier {
	v := &MemoryVerifier{accounts: make(map[string]account)}
	if h, err := password.Hash("dummy-password-for-timing-only", password.DefaultParams()); err == nil {
		v.dummyHash = h
	}
	return v
}

// DeriveCredentialDigest computes the client-side credential digest for a
// plaintext password. Registration and login clients must agree on this
// derivation.
func DeriveCredentialDigest(plaintext string) string {
	return token.HashSHA256Hex(plaintext)
}

// AddDigestAccount registers a user whose logins use nonce-bound digests.
func (v *MemoryVerifier) AddDigestAccount(u User, plaintextPassword string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[NormalizeEmail(u.Email)] = account{
		user:             u,
		credentialDigest: DeriveCredentialDigest(plaintextPassword),
	}
}

// AddPasswordAccount registers a user whose logins submit the raw password,
// verified against an Argon2id hash.
func (v *MemoryVerifier) AddPasswordAccount(u User, plaintextPassword string) error {
	h, err := password.Hash(plaintextPassword, password.DefaultParams())
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[NormalizeEmail(u.Email)] = account{user: u, passwordHash: h}
	return nil
}

// VerifyCredential implements CredentialVerifier.
func (v *MemoryVerifier) VerifyCredential(_ context.Context, email, submitted, nonce string) (User, error) {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return User{}, ErrCredentialRejected
	}

	v.mu.RLock()
	acct, ok := v.accounts[NormalizeEmail(email)]
	v.mu.RUnlock()

	if !ok {
		// Burn comparable work so absent accounts are not cheaper to probe.
		if v.dummyHash != "" {
			_, _ = password.Verify(v.dummyHash, submitted)
		}
		return User{}, ErrCredentialRejected
	}

	if acct.credentialDigest != "" {
		expected := token.BindDigestToNonce(acct.credentialDigest, nonce)
		if !token.SecureEqualHex(expected, submitted) {
			return User{}, ErrCredentialRejected
		}
		return acct.user, nil
	}

	ok, err := password.Verify(acct.passwordHash, submitted)
	if err != nil || !ok {
		return User{}, ErrCredentialRejected
	}
	return acct.user, nil
}
