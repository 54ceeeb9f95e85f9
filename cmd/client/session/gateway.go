package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Gateway is the application's entry point to the backend API. It owns the
// cookie jar carrying the session cookie, refreshes proactively before
// requests, and turns a 401 into refresh-and-replay cycles with backoff
// before giving up.
type Gateway struct {
	http    *http.Client
	baseURL string
	manager *Manager
	log     *slog.Logger
}

// NewGateway builds a Gateway, its cookie-carrying http.Client, and the
// Manager maintaining the session.
func NewGateway(cfg ManagerConfig, storage Storage, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
	}

	cache, err := NewCache(storage, cfg.RefreshThreshold)
	if err != nil {
		return nil, err
	}

	return &Gateway{
		http:    client,
		baseURL: cfg.BaseURL,
		manager: NewManager(cfg, client, cache, log),
		log:     log,
	}, nil
}

// Manager exposes the session manager for login, logout and callbacks.
func (g *Gateway) Manager() *Manager {
	return g.manager
}

// Do performs one JSON API call. A session close to expiry is refreshed
// first; a 401 response hands the call to the manager's recovery path,
// which refreshes and replays it with backoff before giving up. dst may be
// nil for responses without a body.
func (g *Gateway) Do(ctx context.Context, method, path string, body, dst any) error {
	if err := g.manager.CheckAndRefresh(ctx); err != nil {
		// Proactive refresh is best effort; the request itself decides.
		g.log.Debug("client.gateway.refresh.skip", "err", err)
	}

	err := doJSON(ctx, g.http, g.baseURL, method, path, body, dst)
	if !isUnauthorized(err) {
		return err
	}

	return g.manager.HandleUnauthorized(ctx, func(ctx context.Context) error {
		return doJSON(ctx, g.http, g.baseURL, method, path, body, dst)
	})
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
