package authapi

import (
	"time"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/identity"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/session"
)

type nonceResponse struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// loginRequest carries the nonce-bound credential digest, never the raw
// password, unless the account still uses the legacy password scheme.
// DeviceID is optional; the server derives one from request metadata when
// the client sends none.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nonce    string `json:"nonce"`
	DeviceID string `json:"device_id,omitempty"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loginResponse struct {
	User    identity.User   `json:"user"`
	Session sessionResponse `json:"session"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type sessionInfoResponse struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	DeviceID      string    `json:"device_id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

type logoutAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{SessionID: s.ID, ExpiresAt: s.ExpiresAt}
}

func toSessionInfoResponse(s session.Session) sessionInfoResponse {
	return sessionInfoResponse{
		SessionID:     s.ID,
		UserID:        s.UserID,
		DeviceID:      s.DeviceID,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		LastRefreshed: s.LastRefreshed,
	}
}
