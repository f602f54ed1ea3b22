package pairing

import "time"

// Config holds the registry tunables. Zero values fall back to protocol
// defaults via withDefaults.
type Config struct {
	// SessionTTL bounds a session's life from creation (default 5m).
	SessionTTL time.Duration

	// DefaultRequestTimeout applies when a caller omits one (default 60s).
	DefaultRequestTimeout time.Duration

	// SweepInterval is the expiry sweeper period (default 30s).
	SweepInterval time.Duration

	// MirrorTimeout caps each best-effort mirror write (default 3s).
	MirrorTimeout time.Duration
}

const (
	defaultSessionTTL     = 5 * time.Minute
	defaultRequestTimeout = 60 * time.Second
	defaultSweepInterval  = 30 * time.Second
	defaultMirrorTimeout  = 3 * time.Second
)

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.DefaultRequestTimeout <= 0 {
		c.DefaultRequestTimeout = defaultRequestTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.MirrorTimeout <= 0 {
		c.MirrorTimeout = defaultMirrorTimeout
	}
	return c
}
