package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestSession(id, userID, deviceID string, created time.Time, ttl time.Duration) Session {
	return Session{
		ID:            id,
		UserID:        userID,
		DeviceID:      deviceID,
		UserAgent:     "elib-test/1.0",
		IP:            "203.0.113.7",
		CreatedAt:     created,
		ExpiresAt:     created.Add(ttl),
		LastRefreshed: created,
	}
}

func TestMemoryStore_CapEvictsGlobalLRU(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	// Five sessions on distinct devices, oldest refreshed first.
	for i := range 5 {
		s := newTestSession(fmt.Sprintf("s%d", i), "u1", fmt.Sprintf("dev%d", i), now.Add(time.Duration(i)*time.Minute), 24*time.Hour)
		if _, err := store.Create(ctx, s.CreatedAt, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// Sixth session on a new device evicts s0, the global LRU.
	s5 := newTestSession("s5", "u1", "dev-new", now.Add(10*time.Minute), 24*time.Hour)
	evicted, err := store.Create(ctx, s5.CreatedAt, s5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "s0" {
		t.Fatalf("evicted = %v, want [s0]", evicted)
	}

	if _, err := store.GetByID(ctx, "s0"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected s0 gone, got %v", err)
	}
	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(sessions) != 5 {
		t.Fatalf("user holds %d sessions, want 5", len(sessions))
	}
}

func TestMemoryStore_CapPrefersSameDeviceVictim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	// s0 is the oldest overall, but s2 shares the incoming device.
	devices := []string{"dev-a", "dev-b", "dev-c", "dev-d", "dev-c"}
	for i, dev := range devices {
		s := newTestSession(fmt.Sprintf("s%d", i), "u1", dev, now.Add(time.Duration(i)*time.Minute), 24*time.Hour)
		if _, err := store.Create(ctx, s.CreatedAt, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	next := newTestSession("s5", "u1", "dev-c", now.Add(10*time.Minute), 24*time.Hour)
	evicted, err := store.Create(ctx, next.CreatedAt, next)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "s2" {
		t.Fatalf("evicted = %v, want [s2] (stale session on same device)", evicted)
	}
	if _, err := store.GetByID(ctx, "s0"); err != nil {
		t.Fatalf("s0 on another device must survive: %v", err)
	}
}

func TestMemoryStore_SingleSessionDeviceEvictsGlobalLRU(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	// Five sessions on five distinct devices; dev4 holds only s4, the most
	// recently refreshed session of all.
	for i := range 5 {
		s := newTestSession(fmt.Sprintf("s%d", i), "u1", fmt.Sprintf("dev%d", i), now.Add(time.Duration(i)*time.Minute), 24*time.Hour)
		if _, err := store.Create(ctx, s.CreatedAt, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// A sixth login from dev4 must not evict its own session s4; the
	// victim is s0, the stalest session overall.
	next := newTestSession("s5", "u1", "dev4", now.Add(10*time.Minute), 24*time.Hour)
	evicted, err := store.Create(ctx, next.CreatedAt, next)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "s0" {
		t.Fatalf("evicted = %v, want [s0]", evicted)
	}
	if _, err := store.GetByID(ctx, "s4"); err != nil {
		t.Fatalf("s4 must survive a new login from its own device: %v", err)
	}
}

func TestMemoryStore_ExpiredSessionsDoNotCountTowardCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	for i := range 5 {
		s := newTestSession(fmt.Sprintf("old%d", i), "u1", "dev", now.Add(-2*time.Hour), time.Hour)
		if _, err := store.Create(ctx, now.Add(-2*time.Hour), s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// All five are expired at now, so no eviction happens.
	fresh := newTestSession("fresh", "u1", "dev", now, 24*time.Hour)
	evicted, err := store.Create(ctx, now, fresh)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(evicted) != 0 {
		t.Fatalf("evicted = %v, want none (expired rows dropped instead)", evicted)
	}
	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "fresh" {
		t.Fatalf("sessions = %v, want only fresh", sessions)
	}
}

func TestMemoryStore_ConcurrentCreatesRespectCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newTestSession(fmt.Sprintf("c%d", i), "u1", fmt.Sprintf("dev%d", i%7), now, 24*time.Hour)
			if _, err := store.Create(ctx, now, s); err != nil {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()

	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(sessions) > 5 {
		t.Fatalf("user holds %d sessions, cap is 5", len(sessions))
	}
}

func TestMemoryStore_RefreshExtendsAndStamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	s := newTestSession("s1", "u1", "dev", now, 24*time.Hour)
	if _, err := store.Create(ctx, now, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	later := now.Add(time.Hour)
	got, err := store.Refresh(ctx, later, "s1", later.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !got.LastRefreshed.Equal(later) {
		t.Fatalf("LastRefreshed = %v, want %v", got.LastRefreshed, later)
	}
	if !got.ExpiresAt.Equal(later.Add(24 * time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want %v", got.ExpiresAt, later.Add(24*time.Hour))
	}
}

func TestMemoryStore_RefreshExpiredDeletesSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	s := newTestSession("s1", "u1", "dev", now, time.Hour)
	if _, err := store.Create(ctx, now, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	after := now.Add(2 * time.Hour)
	if _, err := store.Refresh(ctx, after, "s1", after.Add(24*time.Hour)); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// The expired session is gone, not resurrectable.
	if _, err := store.GetByID(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after expired refresh, got %v", err)
	}
}

func TestMemoryStore_RevokeIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	s := newTestSession("s1", "u1", "dev", now, 24*time.Hour)
	if _, err := store.Create(ctx, now, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("second Revoke must be a no-op: %v", err)
	}
	if err := store.Revoke(ctx, "never-existed"); err != nil {
		t.Fatalf("Revoke unknown must be a no-op: %v", err)
	}
}

func TestMemoryStore_RevokeAllCountsRemoved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	for i := range 3 {
		s := newTestSession(fmt.Sprintf("u1-s%d", i), "u1", "dev", now, 24*time.Hour)
		if _, err := store.Create(ctx, now, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	other := newTestSession("u2-s0", "u2", "dev", now, 24*time.Hour)
	if _, err := store.Create(ctx, now, other); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("RevokeAll removed %d, want 3", n)
	}
	if _, err := store.GetByID(ctx, "u2-s0"); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}

	n, err = store.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 0 {
		t.Fatalf("second RevokeAll removed %d, want 0", n)
	}
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	// The stale session belongs to another user, so creating the live one
	// does not already purge it via the cap check.
	stale := newTestSession("stale", "u2", "dev", now.Add(-2*time.Hour), time.Hour)
	live := newTestSession("live", "u1", "dev2", now, 24*time.Hour)
	if _, err := store.Create(ctx, stale.CreatedAt, stale); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, now, live); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("DeleteExpired removed %d, want 1", n)
	}
	if _, err := store.GetByID(ctx, "live"); err != nil {
		t.Fatalf("live session must survive sweep: %v", err)
	}
}

func TestMemoryStore_ListByDevice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(5)
	now := time.Now().UTC()

	for i, dev := range []string{"tablet", "tablet", "phone"} {
		s := newTestSession(fmt.Sprintf("s%d", i), "u1", dev, now.Add(time.Duration(i)*time.Minute), 24*time.Hour)
		if _, err := store.Create(ctx, s.CreatedAt, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := store.ListByDevice(ctx, "u1", "tablet")
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s0" || got[1].ID != "s1" {
		t.Fatalf("tablet sessions = %+v, want s0 then s1", got)
	}

	if got, err := store.ListByDevice(ctx, "u1", "watch"); err != nil || len(got) != 0 {
		t.Fatalf("unknown device = (%v, %v), want empty", got, err)
	}
}
