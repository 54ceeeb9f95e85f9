package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (elibrary.sessions).
type PostgresStore struct {
	pool       *pgxpool.Pool
	maxPerUser int
}

// NewPostgresStore creates a Postgres-backed session store enforcing the
// given per-user cap.
func NewPostgresStore(pool *pgxpool.Pool, maxPerUser int) *PostgresStore {
	if maxPerUser < 1 {
		maxPerUser = DefaultConfig().MaxPerUser
	}
	return &PostgresStore{pool: pool, maxPerUser: maxPerUser}
}

const sessionColumns = `
	id, user_id, device_id, user_agent, ip,
	created_at, expires_at, last_refreshed
`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.DeviceID,
		&s.UserAgent,
		&s.IP,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.LastRefreshed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// Create inserts a new session row, evicting past-cap sessions inside one
// transaction. The user's live rows are locked FOR UPDATE so concurrent
// logins serialize on the cap check.
func (p *PostgresStore) Create(ctx context.Context, now time.Time, s Session) ([]string, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Expired rows never count toward the cap.
	if _, err := tx.Exec(ctx, `
		DELETE FROM elibrary.sessions
		WHERE user_id = $1 AND expires_at <= $2
	`, s.UserID, now); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, device_id, last_refreshed
		FROM elibrary.sessions
		WHERE user_id = $1
		ORDER BY last_refreshed ASC
		FOR UPDATE
	`, s.UserID)
	if err != nil {
		return nil, err
	}

	type liveRow struct {
		id            string
		deviceID      string
		lastRefreshed time.Time
	}
	var live []liveRow
	for rows.Next() {
		var r liveRow
		if err := rows.Scan(&r.id, &r.deviceID, &r.lastRefreshed); err != nil {
			rows.Close()
			return nil, err
		}
		live = append(live, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrive ordered by last_refreshed, so the first match in each
	// pass is the least-recently-refreshed candidate.
	var evicted []string
	for len(live)-len(evicted) >= p.maxPerUser {
		victim := ""
		if s.DeviceID != "" {
			deviceHeld := 0
			first := ""
			for _, r := range live {
				if r.deviceID == s.DeviceID && !slices.Contains(evicted, r.id) {
					deviceHeld++
					if first == "" {
						first = r.id
					}
				}
			}
			// A device holding a single session keeps it; the global
			// least-recently-refreshed row decides instead.
			if deviceHeld > 1 {
				victim = first
			}
		}
		if victim == "" {
			for _, r := range live {
				if !slices.Contains(evicted, r.id) {
					victim = r.id
					break
				}
			}
		}
		if victim == "" {
			break
		}
		evicted = append(evicted, victim)
	}

	for _, id := range evicted {
		if _, err := tx.Exec(ctx, `DELETE FROM elibrary.sessions WHERE id = $1`, id); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO elibrary.sessions (
			id, user_id, device_id, user_agent, ip,
			created_at, expires_at, last_refreshed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.UserID, s.DeviceID, s.UserAgent, s.IP, s.CreatedAt, s.ExpiresAt, s.LastRefreshed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return evicted, nil
}

// GetByID loads a session row by ID.
func (p *PostgresStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	return scanSession(p.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM elibrary.sessions
		WHERE id = $1
	`, sessionID))
}

// Refresh extends a live session. The row is locked FOR UPDATE so the
// expiry check and the update are one step.
func (p *PostgresStore) Refresh(ctx context.Context, now time.Time, sessionID string, expiresAt time.Time) (Session, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM elibrary.sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID))
	if err != nil {
		return Session{}, err
	}

	if s.Expired(now) {
		if _, err := tx.Exec(ctx, `DELETE FROM elibrary.sessions WHERE id = $1`, sessionID); err != nil {
			return Session{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Session{}, err
		}
		return Session{}, ErrSessionExpired
	}

	if _, err := tx.Exec(ctx, `
		UPDATE elibrary.sessions
		SET expires_at = $2, last_refreshed = $3
		WHERE id = $1
	`, sessionID, expiresAt, now); err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, err
	}

	s.ExpiresAt = expiresAt
	s.LastRefreshed = now
	return s, nil
}

// Revoke hard-deletes a single session (idempotent).
func (p *PostgresStore) Revoke(ctx context.Context, sessionID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM elibrary.sessions WHERE id = $1`, sessionID)
	return err
}

// RevokeAll hard-deletes every session for a user.
func (p *PostgresStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM elibrary.sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListByUser returns the user's sessions ordered by last_refreshed.
func (p *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM elibrary.sessions
		WHERE user_id = $1
		ORDER BY last_refreshed ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.DeviceID, &s.UserAgent, &s.IP,
			&s.CreatedAt, &s.ExpiresAt, &s.LastRefreshed,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByDevice returns the user's sessions on one device, ordered by
// last_refreshed.
func (p *PostgresStore) ListByDevice(ctx context.Context, userID, deviceID string) ([]Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM elibrary.sessions
		WHERE user_id = $1 AND device_id = $2
		ORDER BY last_refreshed ASC
	`, userID, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.DeviceID, &s.UserAgent, &s.IP,
			&s.CreatedAt, &s.ExpiresAt, &s.LastRefreshed,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteExpired hard-deletes all expired sessions.
func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM elibrary.sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
