package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisAddr switches rate limiting to a shared Redis backend when set.
	// Empty means per-process in-memory windows.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, the session cookie MUST be marked Secure and the dev login
	// account must be disabled. Startup fails otherwise.
	RequireSecureCookies bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	NoncePurgeInterval     time.Duration
	RateLimitSweepInterval time.Duration

	// DevUserEmail/DevUserPassword seed a single in-memory login account.
	// Dev and test deployments only.
	DevUserEmail    string
	DevUserPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("ELIB_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("ELIB_LOG_LEVEL", "info"),
		LogFormat: EnvString("ELIB_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("ELIB_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("ELIB_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("ELIB_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("ELIB_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("ELIB_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("ELIB_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("ELIB_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("ELIB_DB_MIN_CONNS", 0),

		RedisAddr:     EnvString("ELIB_REDIS_ADDR", ""),
		RedisPassword: EnvString("ELIB_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("ELIB_REDIS_DB", 0),

		ReadinessRequireDB: EnvBool("ELIB_READINESS_REQUIRE_DB", false),

		RequireSecureCookies: EnvBool("ELIB_REQUIRE_SECURE_COOKIES", false),

		CORSAllowedOrigins:   EnvStringSlice("ELIB_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("ELIB_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("ELIB_CORS_MAX_AGE_SECONDS", 600),

		NoncePurgeInterval:     EnvDuration("ELIB_NONCE_PURGE_INTERVAL", time.Minute),
		RateLimitSweepInterval: EnvDuration("ELIB_RATE_LIMIT_SWEEP_INTERVAL", time.Minute),

		DevUserEmail:    EnvString("ELIB_DEV_USER_EMAIL", ""),
		DevUserPassword: EnvString("ELIB_DEV_USER_PASSWORD", ""),
	}
}
