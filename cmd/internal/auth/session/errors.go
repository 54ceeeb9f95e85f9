package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID does not match any
	// live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session exists but its expiry
	// has passed. The presented session is removed; expired sessions are
	// never extended.
	ErrSessionExpired = errors.New("session expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
