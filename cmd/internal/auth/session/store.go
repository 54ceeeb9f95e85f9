package session

import (
	"context"
	"time"
)

// Store abstracts persistence for session state.
//
// Implementations must enforce the per-user cap atomically inside Create:
// two concurrent logins for the same user must never leave the user above
// the cap.
type Store interface {
	// Create persists a new session, evicting least-recently-refreshed
	// sessions as needed to respect the per-user cap. It returns the IDs
	// of any evicted sessions. Expired sessions never count toward the
	// cap and may be dropped in the same step.
	Create(ctx context.Context, now time.Time, s Session) (evicted []string, err error)

	// GetByID loads a session by ID. Expiry is not checked here; callers
	// decide how to treat an expired row.
	GetByID(ctx context.Context, sessionID string) (Session, error)

	// Refresh extends a live session to expiresAt and stamps
	// LastRefreshed to now. An expired session is deleted and
	// ErrSessionExpired returned; it is never extended.
	Refresh(ctx context.Context, now time.Time, sessionID string, expiresAt time.Time) (Session, error)

	// Revoke hard-deletes a single session. Revoking an unknown session
	// is a no-op.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeAll hard-deletes every session for a user and reports how
	// many were removed.
	RevokeAll(ctx context.Context, userID string) (int, error)

	// ListByUser returns the user's sessions, live and expired, ordered
	// by LastRefreshed ascending.
	ListByUser(ctx context.Context, userID string) ([]Session, error)

	// ListByDevice returns the user's sessions on one device, ordered by
	// LastRefreshed ascending.
	ListByDevice(ctx context.Context, userID, deviceID string) ([]Session, error)

	// DeleteExpired hard-deletes all sessions whose expiry has passed and
	// reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
