package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" (default) or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Pairing protocol tunables.
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	ExpirySweep    time.Duration

	// Reliable delivery tunables.
	AckWindow     time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  envString("HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "json"),

		ReadHeaderTimeout: envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: envInt("HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: envString("DATABASE_URL", ""),
		DBMaxConns:  envInt32("DB_MAX_CONNS", 10),
		DBMinConns:  envInt32("DB_MIN_CONNS", 0),
		DBSchema:    envString("DB_SCHEMA", "tether"),

		ReadinessRequireDB: envBool("READINESS_REQUIRE_DB", false),

		SessionTTL:     envDuration("SESSION_TTL", 5*time.Minute),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 60*time.Second),
		ExpirySweep:    envDuration("EXPIRY_SWEEP_INTERVAL", 30*time.Second),

		AckWindow:     envDuration("ACK_WINDOW", 5*time.Second),
		RetryInterval: envDuration("RETRY_INTERVAL", 2*time.Second),
		MaxRetries:    envInt("MAX_RETRIES", 3),
	}
}
