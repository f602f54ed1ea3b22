package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// The whole configuration surface lives under one TETHER_ prefix, so the
// helpers take the bare knob name. A malformed or non-positive value
// degrades to the built-in default instead of failing startup.
const envPrefix = "TETHER_"

func envValue(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + name))
	return v, v != ""
}

func envString(name, def string) string {
	if v, ok := envValue(name); ok {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v, ok := envValue(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envInt accepts positive integers only; sizes and counts have no zero or
// negative configuration.
func envInt(name string, def int) int {
	v, ok := envValue(name)
	if !ok {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

// envInt32 allows zero: pool minimums may legitimately be 0.
func envInt32(name string, def int32) int32 {
	v, ok := envValue(name)
	if !ok {
		return def
	}
	if n, err := strconv.ParseInt(v, 10, 32); err == nil && n >= 0 {
		return int32(n)
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	v, ok := envValue(name)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}
