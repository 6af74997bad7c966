package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration loaded from file and environment.
type Config struct {
	// DefaultFeedLimit is the per-antenna feed size used when no policy can
	// be resolved for the owner, even via the synchronous fallback.
	DefaultFeedLimit int `json:"defaultFeedLimit" yaml:"defaultFeedLimit"`
	// HomeRequiresFollow additionally constrains source=home antennas to
	// notes whose author the owner follows. Off by default: home applies no
	// structural constraint beyond the shared clauses.
	HomeRequiresFollow bool `json:"homeRequiresFollow" yaml:"homeRequiresFollow"`
	// EvalConcurrency bounds concurrent predicate evaluations per dispatch.
	// Zero means unbounded.
	EvalConcurrency int `json:"evalConcurrency" yaml:"evalConcurrency"`
	// LookupConcurrency bounds concurrent outstanding policy lookups in the
	// batch phase of limit resolution.
	LookupConcurrency int `json:"lookupConcurrency" yaml:"lookupConcurrency"`
	// BusBuffer is the per-subscriber event buffer of the in-process bus.
	BusBuffer int `json:"busBuffer" yaml:"busBuffer"`
	// NoteChannel is the bus channel the engine consumes newly created notes
	// from when running as a worker.
	NoteChannel string `json:"noteChannel" yaml:"noteChannel"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DefaultFeedLimit:  200,
		EvalConcurrency:   64,
		LookupConcurrency: 16,
		BusBuffer:         1024,
		NoteChannel:       "notes",
	}
}

// Load reads configuration from a JSON or YAML file by extension. An empty
// path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config: %w", err)
		}
	}
	return cfg, nil
}
