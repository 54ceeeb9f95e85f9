package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls session lifetime, the per-user session cap, and the cadence of
// the expired-session sweeper. The struct is intentionally explicit and
// environment-driven so deployments can tune policy without code changes.
type Config struct {
	// TTL is the lifetime granted to a session on creation and on each
	// successful refresh.
	TTL time.Duration

	// MaxPerUser caps the number of live sessions a user may hold.
	// Creating a session past the cap evicts the least-recently-refreshed
	// one instead of failing the login.
	MaxPerUser int

	// SweepInterval is how often the background sweeper hard-deletes
	// expired sessions.
	SweepInterval time.Duration
}

// DefaultConfig returns defaults suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		TTL:           24 * time.Hour,
		MaxPerUser:    5,
		SweepInterval: 5 * time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - ELIB_SESSION_TTL
//   - ELIB_SESSION_MAX_PER_USER
//   - ELIB_SESSION_SWEEP_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("ELIB_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("ELIB_SESSION_MAX_PER_USER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return Config{}, ErrConfig
		}
		cfg.MaxPerUser = n
	}

	if v := os.Getenv("ELIB_SESSION_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	return cfg, nil
}
