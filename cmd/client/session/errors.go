package session

import "errors"

var (
	// ErrNoSession is returned when an operation needs a cached session
	// and none exists.
	ErrNoSession = errors.New("no active session")

	// ErrRefreshExhausted is returned when the session could not be
	// refreshed after all retries. The local session state is cleared
	// before this is returned.
	ErrRefreshExhausted = errors.New("session refresh exhausted")
)
