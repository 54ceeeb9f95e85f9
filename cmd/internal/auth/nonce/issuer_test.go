package nonce

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestIssueAndConsume(t *testing.T) {
	iss := NewIssuer(DefaultConfig())
	now := time.Now()

	n, exp, err := iss.Issue(now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if n == "" {
		t.Fatal("empty nonce")
	}
	if got, want := exp, now.Add(10*time.Minute); !got.Equal(want) {
		t.Fatalf("expiry = %v, want %v", got, want)
	}

	if err := iss.Consume(n, now); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	// Second use must fail.
	if err := iss.Consume(n, now); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("expected ErrNonceInvalid on reuse, got %v", err)
	}
}

func TestConsumeExpired(t *testing.T) {
	iss := NewIssuer(Config{TTL: time.Minute, Bytes: 48})
	now := time.Now()

	n, _, err := iss.Issue(now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := iss.Consume(n, now.Add(2*time.Minute)); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("expected ErrNonceInvalid for expired nonce, got %v", err)
	}
	if iss.Outstanding() != 0 {
		t.Fatalf("expired nonce left behind: %d outstanding", iss.Outstanding())
	}
}

func TestConsumeUnknown(t *testing.T) {
	iss := NewIssuer(DefaultConfig())
	if err := iss.Consume("never-issued", time.Now()); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("expected ErrNonceInvalid, got %v", err)
	}
	if err := iss.Consume("", time.Now()); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("expected ErrNonceInvalid for empty nonce, got %v", err)
	}
}

func TestConsumeSingleWinnerUnderConcurrency(t *testing.T) {
	iss := NewIssuer(DefaultConfig())
	now := time.Now()

	n, _, err := iss.Issue(now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if iss.Consume(n, now) == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("nonce consumed %d times, want exactly 1", count)
	}
}

func TestPurgeExpired(t *testing.T) {
	iss := NewIssuer(Config{TTL: time.Minute, Bytes: 48})
	now := time.Now()

	for range 3 {
		if _, _, err := iss.Issue(now); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}
	fresh, _, err := iss.Issue(now.Add(5 * time.Minute))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if removed := iss.PurgeExpired(now.Add(2 * time.Minute)); removed != 3 {
		t.Fatalf("PurgeExpired removed %d, want 3", removed)
	}
	if err := iss.Consume(fresh, now.Add(5*time.Minute)); err != nil {
		t.Fatalf("fresh nonce should survive purge: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ELIB_NONCE_TTL", "30s")
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.TTL != 30*time.Second {
		t.Fatalf("TTL = %v, want 30s", cfg.TTL)
	}

	t.Setenv("ELIB_NONCE_TTL", "not-a-duration")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
