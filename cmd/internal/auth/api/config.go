package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing for the
	// client IP. Leave off unless a trusted proxy fronts the server.
	TrustProxy bool

	// MaxBodyBytes caps request body size for JSON endpoints.
	MaxBodyBytes int64

	// Session cookie attributes.
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
//
// Optional:
//   - ELIB_AUTH_TRUST_PROXY
//   - ELIB_AUTH_MAX_BODY_BYTES
//   - ELIB_AUTH_COOKIE_NAME
//   - ELIB_AUTH_COOKIE_PATH
//   - ELIB_AUTH_COOKIE_DOMAIN
//   - ELIB_AUTH_COOKIE_SECURE
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:     envBool("ELIB_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("ELIB_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CookieName:     envString("ELIB_AUTH_COOKIE_NAME", "session_token"),
		CookiePath:     envString("ELIB_AUTH_COOKIE_PATH", "/"),
		CookieDomain:   envString("ELIB_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("ELIB_AUTH_COOKIE_SECURE", true),
		CookieSameSite: http.SameSiteStrictMode,
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "session_token"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
