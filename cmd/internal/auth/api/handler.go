package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/identity"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/nonce"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/ratelimit"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/session"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/metrics"
)

// Handler wires the HTTP auth endpoints to the nonce, session and rate
// limiting services.
type Handler struct {
	log *slog.Logger
	cfg Config

	nonces   *nonce.Issuer
	sessions *session.Service
	verifier identity.CredentialVerifier
	limiter  ratelimit.Limiter
	notifier SessionNotifier
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithSessionNotifier overrides the default no-op revocation notifier.
func WithSessionNotifier(n SessionNotifier) HandlerOption {
	return func(h *Handler) {
		if h == nil || n == nil {
			return
		}
		h.notifier = n
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, nonces *nonce.Issuer, sessions *session.Service, verifier identity.CredentialVerifier, limiter ratelimit.Limiter, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if nonces == nil || sessions == nil || verifier == nil || limiter == nil {
		return nil, errors.New("authapi: nil dependency")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		nonces:   nonces,
		sessions: sessions,
		verifier: verifier,
		limiter:  limiter,
		notifier: NoopSessionNotifier{},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/v1/nonce", h.handleNonce)
	mux.HandleFunc("/api/v1/login", h.handleLogin)
	mux.HandleFunc("/api/v1/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/v1/session/info", h.handleSessionInfo)
	mux.HandleFunc("/api/v1/logout", h.handleLogout)
	mux.HandleFunc("/api/v1/logout-all", h.handleLogoutAll)
}

// ---- handlers ----

func (h *Handler) handleNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.allow(w, r, ratelimit.RouteNonce, now) {
		return
	}

	n, exp, err := h.nonces.Issue(now)
	if err != nil {
		h.log.Error("auth.nonce.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	metrics.NoncesIssued.Inc()
	writeJSON(w, http.StatusOK, nonceResponse{Nonce: n, ExpiresAt: exp})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.allow(w, r, ratelimit.RouteLogin, now) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := identity.NormalizeEmail(req.Email)
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" || strings.TrimSpace(req.Nonce) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email, password and nonce are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// The nonce burns whether or not the credential checks out; a failed
	// login has to fetch a fresh one.
	if err := h.nonces.Consume(strings.TrimSpace(req.Nonce), now); err != nil {
		metrics.NoncesRejected.Inc()
		h.log.Info("auth.login.nonce.reject", "ip", ip)
		writeError(w, http.StatusBadRequest, "nonce_invalid", "unknown, consumed or expired nonce")
		return
	}

	user, err := h.verifier.VerifyCredential(ctx, email, password, strings.TrimSpace(req.Nonce))
	if err != nil {
		h.log.Info("auth.login.fail", "ip", ip)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	// Prefer the client's own device identifier; derive one from request
	// metadata only when the client sends none.
	devID := strings.TrimSpace(req.DeviceID)
	if devID == "" {
		devID = strings.TrimSpace(r.Header.Get("X-Device-ID"))
	}
	if devID == "" {
		devID = deviceID(ua, ip)
	}

	dev := session.DeviceContext{
		DeviceID:  devID,
		UserAgent: ua,
		IP:        ip,
	}

	sess, err := h.sessions.IssueSession(ctx, now, user.ID, dev)
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login.ok",
		"user_id", user.ID,
		"session_id", sess.ID,
		"device_id", sess.DeviceID,
	)

	h.setSessionCookie(w, sess.ID, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		User:    user,
		Session: toSessionResponse(sess),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.allow(w, r, ratelimit.RouteRefresh, now) {
		return
	}

	sessionID, ok := h.sessionIDFromCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session cookie")
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), now, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrSessionNotFound):
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.setSessionCookie(w, sess.ID, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(sess)})
}

func (h *Handler) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.allow(w, r, ratelimit.RouteSessionInfo, now) {
		return
	}

	sess, ok := h.requireSession(w, r, now)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toSessionInfoResponse(sess))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.allow(w, r, ratelimit.RouteLogout, now) {
		return
	}

	// Logout is idempotent: no cookie or an unknown session still clears
	// state and succeeds.
	sessionID, ok := h.sessionIDFromCookie(r)
	if ok {
		ctx := r.Context()
		var userID string
		if sess, err := h.sessions.Validate(ctx, now, sessionID); err == nil {
			userID = sess.UserID
		}
		if err := h.sessions.Revoke(ctx, sessionID); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		h.notifyRevoked(r, RevocationEvent{UserID: userID, SessionID: sessionID, Reason: "logout"})
		h.log.Info("auth.logout.ok", "session_id", sessionID)
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.allow(w, r, ratelimit.RouteLogoutAll, now) {
		return
	}

	sess, ok := h.requireSession(w, r, now)
	if !ok {
		return
	}

	ctx := r.Context()
	n, err := h.sessions.RevokeAll(ctx, sess.UserID)
	if err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.notifyRevoked(r, RevocationEvent{UserID: sess.UserID, SessionID: sess.ID, Reason: "logout_all"})
	h.log.Info("auth.logout_all.ok", "user_id", sess.UserID, "revoked", n)

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, logoutAllResponse{RevokedCount: n})
}

// ---- helpers ----

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, route ratelimit.Route, now time.Time) bool {
	key := clientIP(r, h.cfg.TrustProxy)
	allowed, retryAfter, err := h.limiter.Allow(r.Context(), key, route, now)
	if err != nil {
		// Fail open: a limiter outage must not block logins.
		h.log.Error("auth.rate_limit.fail", "err", err, "route", string(route))
		return true
	}
	if !allowed {
		metrics.RateLimitRejections.WithLabelValues(string(route)).Inc()
		writeRateLimited(w, retryAfter)
		return false
	}
	return true
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, now time.Time) (session.Session, bool) {
	sessionID, ok := h.sessionIDFromCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session cookie")
		return session.Session{}, false
	}

	sess, err := h.sessions.Validate(r.Context(), now, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrSessionNotFound):
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		default:
			h.log.Error("auth.session.validate.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return session.Session{}, false
	}
	return sess, true
}

func (h *Handler) notifyRevoked(r *http.Request, ev RevocationEvent) {
	if err := h.notifier.NotifySessionRevoked(r.Context(), ev); err != nil {
		h.log.Error("auth.notify.revoked.fail", "err", err)
	}
}
