package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/identity"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/security/token"
)

// ManagerConfig controls session maintenance behavior.
type ManagerConfig struct {
	// BaseURL is the backend root, e.g. "https://library.crjyouth.in".
	BaseURL string

	// RefreshThreshold mirrors the Cache threshold: refresh proactively
	// once expiry is this close.
	RefreshThreshold time.Duration

	// MaxRetries bounds refresh-and-replay attempts in HandleUnauthorized.
	MaxRetries int

	// Backoff holds the delays before each retry; the last entry repeats
	// when attempts outnumber entries.
	Backoff []time.Duration
}

// DefaultManagerConfig returns the standard retry policy.
func DefaultManagerConfig(baseURL string) ManagerConfig {
	return ManagerConfig{
		BaseURL:          baseURL,
		RefreshThreshold: DefaultRefreshThreshold,
		MaxRetries:       4,
		Backoff:          []time.Duration{250 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

// Manager keeps the cached session alive against the backend.
//
// All refresh paths funnel through a singleflight group, so any number of
// concurrent callers produce at most one refresh request at a time.
type Manager struct {
	cfg   ManagerConfig
	http  *http.Client
	cache *Cache
	log   *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	onLogout func(reason string)
}

// NewManager constructs a Manager. The http.Client must carry the cookie
// jar holding the session cookie; NewGateway sets this up.
func NewManager(cfg ManagerConfig, httpClient *http.Client, cache *Cache, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultManagerConfig(cfg.BaseURL).Backoff
	}
	return &Manager{cfg: cfg, http: httpClient, cache: cache, log: log}
}

// OnLogout registers a callback fired once whenever the local session is
// cleared, with a reason of "logout", "logout_all", "session_not_active" or
// "refresh_failed".
func (m *Manager) OnLogout(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = fn
}

// Login runs the nonce handshake and stores the resulting session.
//
// The raw password never crosses the wire: the client derives the stored
// credential digest and binds it to the server-issued nonce.
func (m *Manager) Login(ctx context.Context, email, password string) (State, error) {
	var nr nonceReply
	if err := doJSON(ctx, m.http, m.cfg.BaseURL, http.MethodGet, "/api/v1/nonce", nil, &nr); err != nil {
		return State{}, err
	}

	digest := identity.DeriveCredentialDigest(password)
	devID := m.deviceID()
	var lr loginReply
	err := doJSON(ctx, m.http, m.cfg.BaseURL, http.MethodPost, "/api/v1/login", loginBody{
		Email:    strings.TrimSpace(email),
		Password: token.BindDigestToNonce(digest, nr.Nonce),
		Nonce:    nr.Nonce,
		DeviceID: devID,
	}, &lr)
	if err != nil {
		return State{}, err
	}

	st := State{
		SessionID: lr.Session.SessionID,
		UserID:    lr.User.ID,
		Email:     lr.User.Email,
		DeviceID:  devID,
		ExpiresAt: lr.Session.ExpiresAt,
	}
	if err := m.cache.Put(st); err != nil {
		return State{}, err
	}

	m.log.Info("client.session.login.ok", "session_id", st.SessionID)
	return st, nil
}

// RefreshSession extends the current session on the server and updates the
// cached expiry. Concurrent calls share one request. A 401 means the server
// no longer honors the session; local state is cleared.
func (m *Manager) RefreshSession(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (any, error) {
		if _, ok := m.cache.Current(); !ok {
			return nil, ErrNoSession
		}

		var reply refreshReply
		if err := doJSON(ctx, m.http, m.cfg.BaseURL, http.MethodPost, "/api/v1/auth/refresh", nil, &reply); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				m.localLogout("session_not_active")
			}
			return nil, err
		}

		if st, ok := m.cache.Current(); ok {
			st.SessionID = reply.Session.SessionID
			st.ExpiresAt = reply.Session.ExpiresAt
			if err := m.cache.Put(st); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// CheckAndRefresh refreshes only when the cached session is close to
// expiry. Cheap enough to call before every request.
func (m *Manager) CheckAndRefresh(ctx context.Context) error {
	if !m.cache.NeedsRefresh(time.Now()) {
		return nil
	}
	return m.RefreshSession(ctx)
}

// HandleUnauthorized reacts to a 401 from an API call: it refreshes the
// session and replays the call via retry, backing off between attempts.
// When every attempt keeps coming back 401 the local session is cleared
// and ErrRefreshExhausted is returned, so callers never see the server's
// raw 401 for a session the client believed was live.
func (m *Manager) HandleUnauthorized(ctx context.Context, retry func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, m.backoffDelay(attempt-1)); err != nil {
				return err
			}
		}

		if err := m.RefreshSession(ctx); err != nil {
			lastErr = err
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				// The server rejected the session outright; retrying
				// cannot help.
				break
			}
			if errors.Is(err, ErrNoSession) {
				break
			}
			continue
		}

		lastErr = retry(ctx)
		if lastErr == nil {
			return nil
		}
		if !isUnauthorized(lastErr) {
			// Not a session problem; surface it to the caller unchanged.
			return lastErr
		}
	}

	m.localLogout("refresh_failed")
	return fmt.Errorf("%w: %v", ErrRefreshExhausted, lastErr)
}

// Logout revokes the current session server-side and always clears local
// state, even when the request fails.
func (m *Manager) Logout(ctx context.Context) error {
	err := doJSON(ctx, m.http, m.cfg.BaseURL, http.MethodPost, "/api/v1/logout", nil, nil)
	m.localLogout("logout")

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		// Already logged out server-side; local cleanup is all we need.
		return nil
	}
	return err
}

// LogoutAll revokes every session for the user. Local state clears even
// when the request fails, so the device never holds a session the user
// asked to kill.
func (m *Manager) LogoutAll(ctx context.Context) (int, error) {
	var reply logoutAllReply
	err := doJSON(ctx, m.http, m.cfg.BaseURL, http.MethodPost, "/api/v1/logout-all", nil, &reply)
	m.localLogout("logout_all")
	if err != nil {
		return 0, err
	}
	return reply.RevokedCount, nil
}

// deviceID keeps the device identity stable across logins on the same
// storage: reuse the cached one, mint a fresh one otherwise.
func (m *Manager) deviceID() string {
	if st, ok := m.cache.Current(); ok && st.DeviceID != "" {
		return st.DeviceID
	}
	return uuid.NewString()
}

func (m *Manager) localLogout(reason string) {
	_, had := m.cache.Current()
	if err := m.cache.Clear(); err != nil {
		m.log.Error("client.session.cache.clear.fail", "err", err)
	}
	if !had {
		return
	}

	m.log.Info("client.session.logout", "reason", reason)
	m.mu.Lock()
	fn := m.onLogout
	m.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func (m *Manager) backoffDelay(i int) time.Duration {
	if i >= len(m.cfg.Backoff) {
		i = len(m.cfg.Backoff) - 1
	}
	return m.cfg.Backoff[i]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
