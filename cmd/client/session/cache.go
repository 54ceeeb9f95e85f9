package session

import (
	"encoding/json"
	"sync"
	"time"
)

// cacheKey is the Storage key holding the serialized session snapshot.
const cacheKey = "crjyouth.session"

// DefaultRefreshThreshold is how close to expiry a session may get before
// the Manager refreshes it proactively.
const DefaultRefreshThreshold = 2 * time.Minute

// State is the client-side snapshot of the current session. The session
// cookie itself lives in the Gateway's cookie jar; State only carries what
// the UI and the refresh logic need.
type State struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	DeviceID  string    `json:"device_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`

	// LastRefresh is stamped by Put on every write.
	LastRefresh time.Time `json:"last_refresh"`
}

// Cache holds the session State in memory and mirrors it to Storage, so a
// restarted client picks up where it left off.
type Cache struct {
	storage   Storage
	threshold time.Duration

	mu    sync.Mutex
	state *State
}

// NewCache creates a Cache over storage and loads any persisted snapshot.
// A corrupt snapshot is discarded, not fatal.
func NewCache(storage Storage, threshold time.Duration) (*Cache, error) {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	c := &Cache{storage: storage, threshold: threshold}

	raw, ok, err := storage.Get(cacheKey)
	if err != nil {
		return nil, err
	}
	if ok {
		var st State
		if err := json.Unmarshal(raw, &st); err == nil && st.SessionID != "" {
			c.state = &st
		} else {
			_ = storage.Delete(cacheKey)
		}
	}
	return c, nil
}

// Current returns the cached snapshot, if any.
func (c *Cache) Current() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return State{}, false
	}
	return *c.state, true
}

// Put replaces the snapshot, stamps its last-refresh marker and persists
// it.
func (c *Cache) Put(st State) error {
	st.LastRefresh = time.Now().UTC()
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.Set(cacheKey, raw); err != nil {
		return err
	}
	c.state = &st
	return nil
}

// Clear drops the snapshot from memory and Storage.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nil
	return c.storage.Delete(cacheKey)
}

// IsValid reports whether a session is cached and not yet expired at now.
func (c *Cache) IsValid(now time.Time) bool {
	st, ok := c.Current()
	return ok && st.ExpiresAt.After(now)
}

// NeedsRefresh reports whether the session should be refreshed before the
// next request: nothing cached, no expiry known, or expiry within the
// threshold (including already past).
func (c *Cache) NeedsRefresh(now time.Time) bool {
	st, ok := c.Current()
	if !ok || st.ExpiresAt.IsZero() {
		return true
	}
	return !st.ExpiresAt.After(now.Add(c.threshold))
}
