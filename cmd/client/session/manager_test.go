package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/identity"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/security/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fastConfig(baseURL string) ManagerConfig {
	return ManagerConfig{
		BaseURL:          baseURL,
		RefreshThreshold: 2 * time.Minute,
		MaxRetries:       3,
		Backoff:          []time.Duration{time.Millisecond},
	}
}

func seededManager(t *testing.T, srv *httptest.Server) (*Manager, *Cache) {
	t.Helper()

	cache, err := NewCache(NewMemoryStorage(), 2*time.Minute)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if err := cache.Put(State{
		SessionID: "sess-1",
		UserID:    "U1001",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return NewManager(fastConfig(srv.URL), srv.Client(), cache, testLogger()), cache
}

func writeRefreshOK(w http.ResponseWriter, exp time.Time) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session": map[string]any{"session_id": "sess-1", "expires_at": exp},
	})
}

func TestManagerLoginBindsDigestToNonce(t *testing.T) {
	t.Parallel()

	const nonceValue = "server-nonce"
	digest := identity.DeriveCredentialDigest("library-card-42")
	wantPassword := token.BindDigestToNonce(digest, nonceValue)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"nonce":      nonceValue,
			"expires_at": time.Now().Add(10 * time.Minute),
		})
	})
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		var body loginBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if body.Password != wantPassword {
			t.Errorf("password = %q, want nonce-bound digest", body.Password)
		}
		if body.Nonce != nonceValue {
			t.Errorf("nonce = %q, want %q", body.Nonce, nonceValue)
		}
		if body.DeviceID == "" {
			t.Error("login body must carry a device ID")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"user_id": "U1001", "email": "reader@crjyouth.in"},
			"session": map[string]any{
				"session_id": "sess-1",
				"expires_at": time.Now().Add(24 * time.Hour),
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache, err := NewCache(NewMemoryStorage(), 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	m := NewManager(fastConfig(srv.URL), srv.Client(), cache, testLogger())

	st, err := m.Login(context.Background(), "reader@crjyouth.in", "library-card-42")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if st.SessionID != "sess-1" || st.UserID != "U1001" {
		t.Fatalf("state = %+v", st)
	}
	if _, ok := cache.Current(); !ok {
		t.Fatal("login must populate the cache")
	}
}

func TestConcurrentRefreshesShareOneRequest(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(50 * time.Millisecond) // hold the flight open
		writeRefreshOK(w, time.Now().Add(24*time.Hour))
	}))
	defer srv.Close()

	m, _ := seededManager(t, srv)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.RefreshSession(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("RefreshSession[%d]: %v", i, err)
		}
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("server saw %d refresh calls, want 1", got)
	}
}

func TestRefreshOn401ClearsLocalSession(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"session_not_active","message":"session not active"}}`)
	}))
	defer srv.Close()

	m, cache := seededManager(t, srv)

	var gotReason string
	m.OnLogout(func(reason string) { gotReason = reason })

	err := m.RefreshSession(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if _, ok := cache.Current(); ok {
		t.Fatal("cache must clear after a rejected refresh")
	}
	if gotReason != "session_not_active" {
		t.Fatalf("logout reason = %q, want session_not_active", gotReason)
	}
}

func TestHandleUnauthorizedRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":"server_error","message":"internal error"}}`)
			return
		}
		writeRefreshOK(w, time.Now().Add(24*time.Hour))
	}))
	defer srv.Close()

	m, cache := seededManager(t, srv)

	var replays atomic.Int64
	retry := func(context.Context) error {
		replays.Add(1)
		return nil
	}
	if err := m.HandleUnauthorized(context.Background(), retry); err != nil {
		t.Fatalf("HandleUnauthorized: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("server saw %d refresh calls, want 3 (two failures, one success)", got)
	}
	if got := replays.Load(); got != 1 {
		t.Fatalf("original call replayed %d times, want 1", got)
	}
	if _, ok := cache.Current(); !ok {
		t.Fatal("session must survive a recovered refresh")
	}
}

func TestHandleUnauthorizedExhaustsWhenReplayStays401(t *testing.T) {
	t.Parallel()

	// The refresh endpoint keeps succeeding, but the replayed call never
	// stops returning 401.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRefreshOK(w, time.Now().Add(24*time.Hour))
	}))
	defer srv.Close()

	m, cache := seededManager(t, srv)

	var gotReason string
	m.OnLogout(func(reason string) { gotReason = reason })

	var replays atomic.Int64
	retry := func(context.Context) error {
		replays.Add(1)
		return &APIError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	}

	err := m.HandleUnauthorized(context.Background(), retry)
	if !errors.Is(err, ErrRefreshExhausted) {
		t.Fatalf("expected ErrRefreshExhausted, got %v", err)
	}
	if got := replays.Load(); got != 3 {
		t.Fatalf("original call replayed %d times, want 3 (one per attempt)", got)
	}
	if _, ok := cache.Current(); ok {
		t.Fatal("cache must clear when every replay stays unauthorized")
	}
	if gotReason != "refresh_failed" {
		t.Fatalf("logout reason = %q, want refresh_failed", gotReason)
	}
}

func TestHandleUnauthorizedSurfacesNonAuthReplayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRefreshOK(w, time.Now().Add(24*time.Hour))
	}))
	defer srv.Close()

	m, cache := seededManager(t, srv)

	wantErr := &APIError{Status: http.StatusInternalServerError, Code: "server_error"}
	err := m.HandleUnauthorized(context.Background(), func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the replay's own error, got %v", err)
	}
	if _, ok := cache.Current(); !ok {
		t.Fatal("a non-auth replay failure must not clear the session")
	}
}

func TestHandleUnauthorizedExhaustsAndLogsOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"code":"server_error","message":"internal error"}}`)
	}))
	defer srv.Close()

	m, cache := seededManager(t, srv)

	var gotReason string
	m.OnLogout(func(reason string) { gotReason = reason })

	err := m.HandleUnauthorized(context.Background(), func(context.Context) error {
		t.Error("replay must not run while the refresh keeps failing")
		return nil
	})
	if !errors.Is(err, ErrRefreshExhausted) {
		t.Fatalf("expected ErrRefreshExhausted, got %v", err)
	}
	if _, ok := cache.Current(); ok {
		t.Fatal("cache must clear after exhausted retries")
	}
	if gotReason != "refresh_failed" {
		t.Fatalf("logout reason = %q, want refresh_failed", gotReason)
	}
}

func TestHandleUnauthorizedStopsEarlyOn401(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"session_not_active","message":"session not active"}}`)
	}))
	defer srv.Close()

	m, _ := seededManager(t, srv)

	err := m.HandleUnauthorized(context.Background(), func(context.Context) error {
		t.Error("replay must not run after a rejected refresh")
		return nil
	})
	if !errors.Is(err, ErrRefreshExhausted) {
		t.Fatalf("expected ErrRefreshExhausted, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d refresh calls, want 1 (401 is terminal)", got)
	}
}

func TestLogoutClearsCacheDespiteNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	client := srv.Client()
	srv.Close() // every request now fails at the transport

	cache, err := NewCache(NewMemoryStorage(), 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if err := cache.Put(State{SessionID: "sess-1", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	m := NewManager(fastConfig(srv.URL), client, cache, testLogger())

	if err := m.Logout(context.Background()); err == nil {
		t.Fatal("expected a transport error")
	}
	if _, ok := cache.Current(); ok {
		t.Fatal("local session must clear even when the server is unreachable")
	}
}

func TestLogoutAllReportsCount(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"revoked_count":4}`)
	}))
	defer srv.Close()

	m, cache := seededManager(t, srv)

	n, err := m.LogoutAll(context.Background())
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 4 {
		t.Fatalf("revoked count = %d, want 4", n)
	}
	if _, ok := cache.Current(); ok {
		t.Fatal("logout-all must clear the local session")
	}
}
