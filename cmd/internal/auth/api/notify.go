package authapi

import "context"

// RevocationEvent describes a session that stopped being valid.
type RevocationEvent struct {
	UserID    string
	SessionID string
	// Reason is one of "logout", "logout_all".
	Reason string
}

// SessionNotifier receives revocation events, letting deployments fan them
// out to other services (catalog, reading-progress sync) that cache session
// state.
type SessionNotifier interface {
	NotifySessionRevoked(ctx context.Context, ev RevocationEvent) error
}

// NoopSessionNotifier drops all events. Default when none is configured.
type NoopSessionNotifier struct{}

// NotifySessionRevoked implements SessionNotifier.
func (NoopSessionNotifier) NotifySessionRevoked(context.Context, RevocationEvent) error { return nil }
