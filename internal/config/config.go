// Package config loads the environment-driven settings the core
// recognizes (spec §6 "Environment"). Semantics are fixed; exact names
// are ours to choose, following the teacher's plain os.Getenv idiom
// rather than pulling in a config-loading library (see DESIGN.md).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable the core reads at startup.
type Config struct {
	DatabaseURL string
	RedisURL    string

	HTTPAddr string

	// SessionSigningSecret signs the out-of-core bearer-token session auth.
	SessionSigningSecret string

	RequestDeadline time.Duration

	// ClockSkewTolerance bounds how far into the future an occurrence
	// timestamp may be (spec §4.4).
	ClockSkewTolerance time.Duration
	// RetentionHorizon bounds how far into the past an occurrence
	// timestamp may be (spec §4.4).
	RetentionHorizon time.Duration

	// RateLimiterFailOpen controls spec §4.3's failure policy.
	RateLimiterFailOpen bool

	MaxBatchSize   int
	MaxPayloadSize int64 // bytes

	Env string
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load reads Config from the process environment, applying the same
// defaults the spec calls out.
func Load() Config {
	return Config{
		DatabaseURL:          env("DATABASE_URL", ""),
		RedisURL:             env("REDIS_URL", "redis://localhost:6379/0"),
		HTTPAddr:             env("HTTP_ADDR", ":8080"),
		SessionSigningSecret: env("SESSION_SIGNING_SECRET", "dev-secret-change-in-production"),
		RequestDeadline:      envDuration("REQUEST_DEADLINE", 30*time.Second),
		ClockSkewTolerance:   envDuration("CLOCK_SKEW_TOLERANCE", 5*time.Minute),
		RetentionHorizon:     envDuration("RETENTION_HORIZON", 30*24*time.Hour),
		RateLimiterFailOpen:  envBool("RATE_LIMITER_FAIL_OPEN", true),
		MaxBatchSize:         envInt("MAX_BATCH_SIZE", 1000),
		MaxPayloadSize:       envInt64("MAX_PAYLOAD_SIZE_BYTES", 10*1024*1024),
		Env:                  env("ENV", ""),
	}
}
