// Package app wires the library backend runtime: config, logging, the HTTP
// server, and the session/auth services behind it.
//
// It is intentionally small and deterministic to keep CI gates strict and
// behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/anuragkandulna/crjyouth-elibrary/cmd/identity"
	authapi "github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/api"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/nonce"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/ratelimit"
	"github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/session"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App is the backend runtime: it owns the HTTP server wiring and the
// session, nonce and rate-limit services plus their background loops.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	rdb *redis.Client

	nonces   *nonce.Issuer
	sessions *session.Service

	// memLimiter is set only in in-memory rate-limit mode; its janitor
	// goroutine is started by Run.
	memLimiter *ratelimit.MemoryLimiter

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	authCfg := authapi.LoadConfigFromEnv()
	if err := ValidateSecurityConfig(cfg, authCfg); err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	var sessStore session.Store
	if dbEnabled {
		sessStore = session.NewPostgresStore(dbPool, sessCfg.MaxPerUser)
	} else {
		sessStore = session.NewMemoryStore(sessCfg.MaxPerUser)
	}
	sessions := session.NewService(sessCfg, sessStore, log)

	nonceCfg, err := nonce.LoadConfigFromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	nonces := nonce.NewIssuer(nonceCfg)

	budgets, err := ratelimit.LoadBudgetsFromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	var limiter ratelimit.Limiter
	var memLimiter *ratelimit.MemoryLimiter
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter = ratelimit.NewRedisLimiter(rdb, budgets)
		log.Info("ratelimit.redis", "addr", cfg.RedisAddr)
	} else {
		memLimiter = ratelimit.NewMemoryLimiter(budgets)
		limiter = memLimiter
		log.Info("ratelimit.inmemory")
	}

	verifier := identity.NewMemoryVerifier()
	if cfg.DevUserEmail != "" && cfg.DevUserPassword != "" {
		verifier.AddDigestAccount(identity.User{
			ID:        "U1001",
			Email:     cfg.DevUserEmail,
			FirstName: "Dev",
			LastName:  "User",
			Role:      identity.RoleMember,
		}, cfg.DevUserPassword)
		log.Warn("auth.dev_user.enabled", "email", cfg.DevUserEmail)
	}

	auth, err := authapi.NewHandler(log, authCfg, nonces, sessions, verifier, limiter)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	return &App{
		cfg:        cfg,
		log:        log,
		store:      st,
		dbPool:     dbPool,
		dbEnabled:  dbEnabled,
		rdb:        rdb,
		nonces:     nonces,
		sessions:   sessions,
		memLimiter: memLimiter,
		auth:       auth,
	}, nil
}

// Run starts the background loops and the HTTP server, then blocks until
// context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.sessions.RunSweeper(runCtx)
	go a.purgeNonces(runCtx)
	if a.memLimiter != nil {
		go a.memLimiter.RunJanitor(runCtx, nonZeroDuration(a.cfg.RateLimitSweepInterval, time.Minute))
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)

	handler := WithCORS(mux, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log)
	handler = WithRequestID(handler)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

// purgeNonces drops expired login nonces on a fixed interval so abandoned
// handshakes cannot grow the issuer table.
func (a *App) purgeNonces(ctx context.Context) {
	ticker := time.NewTicker(nonZeroDuration(a.cfg.NoncePurgeInterval, time.Minute))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.nonces.PurgeExpired(now); n > 0 {
				a.log.Info("auth.nonce.purge", "removed", n)
			}
		}
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and in-memory dev
// mode.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return dbStore{pool: pool}, pool, true, nil
}
