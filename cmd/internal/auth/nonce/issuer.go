package nonce

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"sync"
	"time"
)

// Config defines runtime configuration for the nonce issuer.
type Config struct {
	// TTL is how long an issued nonce stays valid.
	TTL time.Duration

	// Bytes is the entropy size of each nonce before encoding.
	Bytes int
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:   10 * time.Minute,
		Bytes: 48,
	}
}

// LoadConfigFromEnv loads nonce configuration from environment variables.
//
// Optional:
//   - ELIB_NONCE_TTL (Go duration string)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("ELIB_NONCE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	return cfg, nil
}

// Issuer mints and consumes single-use nonces.
//
// All operations take an explicit now so expiry behavior is testable.
type Issuer struct {
	cfg Config

	mu     sync.Mutex
	issued map[string]time.Time // nonce -> expiry
}

// NewIssuer constructs an Issuer with the given configuration.
func NewIssuer(cfg Config) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Bytes <= 0 {
		cfg.Bytes = DefaultConfig().Bytes
	}
	return &Issuer{cfg: cfg, issued: make(map[string]time.Time)}
}

// Issue mints a fresh nonce valid until now+TTL.
func (i *Issuer) Issue(now time.Time) (string, time.Time, error) {
	buf := make([]byte, i.cfg.Bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, err
	}
	n := base64.RawURLEncoding.EncodeToString(buf)
	exp := now.Add(i.cfg.TTL)

	i.mu.Lock()
	i.issued[n] = exp
	i.mu.Unlock()

	return n, exp, nil
}

// Consume atomically checks and removes a nonce.
//
// A nonce can be consumed at most once. Unknown, already-consumed and
// expired nonces all return ErrNonceInvalid; an expired entry is deleted
// on the way out so it cannot linger.
func (i *Issuer) Consume(nonce string, now time.Time) error {
	if nonce == "" {
		return ErrNonceInvalid
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	exp, ok := i.issued[nonce]
	if !ok {
		return ErrNonceInvalid
	}
	delete(i.issued, nonce)

	if !exp.After(now) {
		return ErrNonceInvalid
	}
	return nil
}

// PurgeExpired drops all nonces whose expiry has passed and reports how
// many were removed. Intended to run from a periodic sweeper.
func (i *Issuer) PurgeExpired(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for n, exp := range i.issued {
		if !exp.After(now) {
			delete(i.issued, n)
			removed++
		}
	}
	return removed
}

// Outstanding reports how many unconsumed nonces are currently held.
func (i *Issuer) Outstanding() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.issued)
}
