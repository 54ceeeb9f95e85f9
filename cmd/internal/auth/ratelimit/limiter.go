package ratelimit

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid rate limit config")

// Route identifies a throttled route class.
type Route string

const (
	RouteNonce       Route = "nonce"
	RouteLogin       Route = "login"
	RouteRefresh     Route = "refresh"
	RouteSessionInfo Route = "session_info"
	RouteLogout      Route = "logout"
	RouteLogoutAll   Route = "logout_all"
)

// Budget is a fixed-window allowance for one route class.
type Budget struct {
	Max    int
	Window time.Duration
}

// DefaultBudgets returns the per-route budgets.
//
// Login is the tightest because each attempt burns a nonce and a credential
// check; logout-all is rare and destructive, so it gets a long window.
func DefaultBudgets() map[Route]Budget {
	return map[Route]Budget{
		RouteNonce:       {Max: 10, Window: 5 * time.Minute},
		RouteLogin:       {Max: 5, Window: 5 * time.Minute},
		RouteRefresh:     {Max: 10, Window: 5 * time.Minute},
		RouteSessionInfo: {Max: 20, Window: 5 * time.Minute},
		RouteLogout:      {Max: 10, Window: 5 * time.Minute},
		RouteLogoutAll:   {Max: 5, Window: 10 * time.Minute},
	}
}

// LoadBudgetsFromEnv returns DefaultBudgets with per-route overrides
// applied from the environment.
//
// Optional, per route:
//   - ELIB_RATE_<ROUTE>_MAX (e.g. ELIB_RATE_LOGIN_MAX)
//   - ELIB_RATE_<ROUTE>_WINDOW (Go duration string)
//
// A Max of 0 disables the budget for that route. Returns ErrConfig on
// invalid values.
func LoadBudgetsFromEnv() (map[Route]Budget, error) {
	budgets := DefaultBudgets()
	for route, b := range budgets {
		prefix := "ELIB_RATE_" + strings.ToUpper(string(route))
		if v := os.Getenv(prefix + "_MAX"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, ErrConfig
			}
			b.Max = n
		}
		if v := os.Getenv(prefix + "_WINDOW"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, ErrConfig
			}
			b.Window = d
		}
		budgets[route] = b
	}
	return budgets, nil
}

// Limiter decides whether a request from key may proceed on a route.
//
// When the budget is exhausted, retryAfter tells the caller how long until
// the window resets. An unknown route is always allowed.
type Limiter interface {
	Allow(ctx context.Context, key string, route Route, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
