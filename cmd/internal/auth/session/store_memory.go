package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map.
//
// It is the reference implementation for the cap and eviction semantics and
// backs tests and single-node deployments.
type MemoryStore struct {
	maxPerUser int

	mu       sync.Mutex
	sessions map[string]Session            // session ID -> session
	byUser   map[string]map[string]struct{} // user ID -> set of session IDs
}

// NewMemoryStore creates a memory-backed store enforcing the given
// per-user cap.
func NewMemoryStore(maxPerUser int) *MemoryStore {
	if maxPerUser < 1 {
		maxPerUser = DefaultConfig().MaxPerUser
	}
	return &MemoryStore{
		maxPerUser: maxPerUser,
		sessions:   make(map[string]Session),
		byUser:     make(map[string]map[string]struct{}),
	}
}

// Create implements Store. The whole cap check runs under one lock, so
// concurrent logins cannot overshoot the cap.
func (m *MemoryStore) Create(_ context.Context, now time.Time, s Session) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Expired sessions do not count toward the cap. Drop them first.
	for id := range m.byUser[s.UserID] {
		if m.sessions[id].Expired(now) {
			m.removeLocked(id)
		}
	}

	var evicted []string
	for len(m.byUser[s.UserID]) >= m.maxPerUser {
		victim := m.evictionVictimLocked(s.UserID, s.DeviceID)
		if victim == "" {
			break
		}
		m.removeLocked(victim)
		evicted = append(evicted, victim)
	}

	m.sessions[s.ID] = s
	if m.byUser[s.UserID] == nil {
		m.byUser[s.UserID] = make(map[string]struct{})
	}
	m.byUser[s.UserID][s.ID] = struct{}{}

	return evicted, nil
}

// evictionVictimLocked picks the session to drop when the user is at the
// cap: the least-recently-refreshed session on the incoming device when
// that device holds more than one, otherwise the least-recently-refreshed
// session across all of the user's devices.
func (m *MemoryStore) evictionVictimLocked(userID, deviceID string) string {
	var sameDevice, global string
	var sameDeviceAt, globalAt time.Time
	deviceHeld := 0

	for id := range m.byUser[userID] {
		s := m.sessions[id]
		if global == "" || s.LastRefreshed.Before(globalAt) {
			global, globalAt = id, s.LastRefreshed
		}
		if deviceID != "" && s.DeviceID == deviceID {
			deviceHeld++
			if sameDevice == "" || s.LastRefreshed.Before(sameDeviceAt) {
				sameDevice, sameDeviceAt = id, s.LastRefreshed
			}
		}
	}

	// A device holding a single session keeps it; otherwise a login from
	// the freshest device would evict its own live session instead of the
	// stalest one.
	if deviceHeld > 1 {
		return sameDevice
	}
	return global
}

func (m *MemoryStore) removeLocked(sessionID string) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(m.sessions, sessionID)
	if set := m.byUser[s.UserID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(m.byUser, s.UserID)
		}
	}
}

// GetByID implements Store.
func (m *MemoryStore) GetByID(_ context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Refresh implements Store.
func (m *MemoryStore) Refresh(_ context.Context, now time.Time, sessionID string, expiresAt time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.Expired(now) {
		m.removeLocked(sessionID)
		return Session{}, ErrSessionExpired
	}

	s.ExpiresAt = expiresAt
	s.LastRefreshed = now
	m.sessions[sessionID] = s
	return s, nil
}

// Revoke implements Store.
func (m *MemoryStore) Revoke(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(sessionID)
	return nil
}

// RevokeAll implements Store.
func (m *MemoryStore) RevokeAll(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.byUser[userID]))
	for id := range m.byUser[userID] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		m.removeLocked(id)
	}
	return len(ids), nil
}

// ListByUser implements Store.
func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0, len(m.byUser[userID]))
	for id := range m.byUser[userID] {
		out = append(out, m.sessions[id])
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].LastRefreshed.Before(out[b].LastRefreshed)
	})
	return out, nil
}

// ListByDevice implements Store.
func (m *MemoryStore) ListByDevice(_ context.Context, userID, deviceID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for id := range m.byUser[userID] {
		if s := m.sessions[id]; s.DeviceID == deviceID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].LastRefreshed.Before(out[b].LastRefreshed)
	})
	return out, nil
}

// DeleteExpired implements Store.
func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			m.removeLocked(id)
			removed++
		}
	}
	return removed, nil
}
