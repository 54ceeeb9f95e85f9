package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify_RoundTrip(t *testing.T) {
	p := DefaultParams()
	// Keep the test fast; cost does not change correctness.
	p.MemoryKiB = 8 * 1024
	p.Iterations = 1

	enc, err := Hash("correct-horse-battery", p)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding: %q", enc)
	}

	ok, err := Verify(enc, "correct-horse-battery")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = Verify(enc, "wrong-password-entirely")
	if err != nil {
		t.Fatalf("Verify mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_PolicyBounds(t *testing.T) {
	p := DefaultParams()

	if _, err := Hash("short", p); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := Hash(strings.Repeat("a", 300), p); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
	}
	for _, enc := range cases {
		if _, err := Verify(enc, "whatever-password"); err != ErrInvalidHash {
			t.Fatalf("hash %q: expected ErrInvalidHash, got %v", enc, err)
		}
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	// A well-formed hash claiming absurd memory must be refused before any
	// key derivation happens.
	enc := "$argon2id$v=19$m=4194304,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"
	if _, err := Verify(enc, "whatever-password"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}
