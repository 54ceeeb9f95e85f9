package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/identity/ids"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/metrics"
)

// Service implements the high-level session operations for the library
// backend: issue on login, validate, refresh, revoke, revoke-all, and the
// background expiry sweeper.
type Service struct {
	cfg   Config
	store Store
	log   *slog.Logger
}

// NewService constructs a Service over the given store.
func NewService(cfg Config, store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, log: log}
}

// IssueSession creates a new session for the user, evicting the user's
// least-recently-refreshed session if the cap is full.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, dev DeviceContext) (Session, error) {
	id, err := ids.NewSessionID()
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:            id,
		UserID:        userID,
		DeviceID:      dev.DeviceID,
		UserAgent:     dev.UserAgent,
		IP:            dev.IP,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.TTL),
		LastRefreshed: now,
	}

	evicted, err := s.store.Create(ctx, now, sess)
	if err != nil {
		return Session{}, err
	}

	metrics.SessionsCreated.Inc()
	for _, victim := range evicted {
		metrics.SessionsEvicted.Inc()
		s.log.InfoContext(ctx, "auth.session.evict",
			slog.String("user_id", userID),
			slog.String("evicted_session_id", victim),
		)
	}

	return sess, nil
}

// Validate loads a session and enforces expiry. It does not touch
// LastRefreshed; only Refresh advances the eviction clock.
func (s *Service) Validate(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(now) {
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// Refresh extends a live session by the configured TTL. Expired sessions
// are removed, never extended.
func (s *Service) Refresh(ctx context.Context, now time.Time, sessionID string) (Session, error) {
	sess, err := s.store.Refresh(ctx, now, sessionID, now.Add(s.cfg.TTL))
	if err != nil {
		metrics.SessionRefreshes.WithLabelValues("fail").Inc()
		return Session{}, err
	}
	metrics.SessionRefreshes.WithLabelValues("ok").Inc()
	return sess, nil
}

// Revoke removes a single session. Revoking an unknown session succeeds.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	if err := s.store.Revoke(ctx, sessionID); err != nil {
		return err
	}
	metrics.SessionsRevoked.Inc()
	return nil
}

// RevokeAll removes every session for a user and reports how many were
// removed.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := s.store.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevoked.Add(float64(n))
	return n, nil
}

// ListByUser returns the user's sessions ordered by LastRefreshed.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListByDevice returns the user's sessions on one device ordered by
// LastRefreshed.
func (s *Service) ListByDevice(ctx context.Context, userID, deviceID string) ([]Session, error) {
	return s.store.ListByDevice(ctx, userID, deviceID)
}

// RunSweeper deletes expired sessions on the configured interval until the
// context is canceled. Run it in its own goroutine.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.store.DeleteExpired(ctx, now)
			if err != nil {
				s.log.ErrorContext(ctx, "auth.session.sweep.fail", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				metrics.SessionsSwept.Add(float64(n))
				s.log.InfoContext(ctx, "auth.session.sweep", slog.Int("removed", n))
			}
		}
	}
}
