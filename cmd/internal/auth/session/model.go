package session

import "time"

// DeviceContext describes the client device requesting a session.
//
// DeviceID groups sessions from the same browser or app install; the API
// layer derives it from the user agent and client IP.
type DeviceContext struct {
	DeviceID  string
	UserAgent string
	IP        string
}

// Session is one live login on one device.
//
// LastRefreshed starts at CreatedAt and advances on every successful
// refresh. Eviction under the per-user cap removes the session with the
// oldest LastRefreshed.
type Session struct {
	ID            string
	UserID        string
	DeviceID      string
	UserAgent     string
	IP            string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastRefreshed time.Time
}

// Expired reports whether the session's expiry has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
