package config

import (
	"os"
	"strconv"
)

// FromEnv overlays ANTENNA_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("ANTENNA_DEFAULT_FEED_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultFeedLimit = n
		}
	}
	if v := os.Getenv("ANTENNA_HOME_REQUIRES_FOLLOW"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HomeRequiresFollow = b
		}
	}
	if v := os.Getenv("ANTENNA_EVAL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EvalConcurrency = n
		}
	}
	if v := os.Getenv("ANTENNA_LOOKUP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LookupConcurrency = n
		}
	}
	if v := os.Getenv("ANTENNA_BUS_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BusBuffer = n
		}
	}
	if v := os.Getenv("ANTENNA_NOTE_CHANNEL"); v != "" {
		cfg.NoteChannel = v
	}
}
