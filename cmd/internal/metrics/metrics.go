// Package metrics registers the Prometheus instruments exported by the
// library backend. Counters are registered once at init via promauto and
// served on /metrics by the app router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts sessions issued on successful login.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elibrary_sessions_created_total",
		Help: "Sessions created by successful logins.",
	})

	// SessionsEvicted counts sessions evicted by the per-user cap.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elibrary_sessions_evicted_total",
		Help: "Sessions evicted because the owner hit the session cap.",
	})

	// SessionsRevoked counts sessions removed by logout and logout-all.
	SessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elibrary_sessions_revoked_total",
		Help: "Sessions removed by explicit logout.",
	})

	// SessionsSwept counts expired sessions removed by the sweeper.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elibrary_sessions_swept_total",
		Help: "Expired sessions removed by the background sweeper.",
	})

	// SessionRefreshes counts refresh outcomes.
	SessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elibrary_session_refreshes_total",
		Help: "Session refresh attempts by outcome.",
	}, []string{"outcome"})

	// NoncesIssued counts login nonces handed out.
	NoncesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elibrary_nonces_issued_total",
		Help: "Login nonces issued.",
	})

	// NoncesRejected counts login attempts with unknown, reused or
	// expired nonces.
	NoncesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elibrary_nonces_rejected_total",
		Help: "Login attempts rejected for an invalid nonce.",
	})

	// RateLimitRejections counts requests turned away by the limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elibrary_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter, by route class.",
	}, []string{"route"})
)
