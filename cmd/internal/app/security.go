package app

import (
	"errors"

	authapi "github.com/anuragkandulna/crjyouth-elibrary/cmd/internal/auth/api"
)

// ValidateSecurityConfig enforces the deployment security policy at startup.
//
// Fail-fast is intentional: a production instance that silently serves the
// session cookie without the Secure flag, or keeps a seeded dev login
// reachable, is worse than one that refuses to boot.
func ValidateSecurityConfig(cfg Config, authCfg authapi.Config) error {
	if !cfg.RequireSecureCookies {
		return nil
	}

	if !authCfg.CookieSecure {
		return errors.New("security policy: ELIB_REQUIRE_SECURE_COOKIES=true but ELIB_AUTH_COOKIE_SECURE is disabled")
	}

	if cfg.DevUserEmail != "" || cfg.DevUserPassword != "" {
		return errors.New("security policy: ELIB_REQUIRE_SECURE_COOKIES=true forbids the seeded dev login account")
	}

	return nil
}
