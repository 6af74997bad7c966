package serverrun

import (
	"context"
	"errors"
	"testing"
	"time"

	cfgpkg "github.com/hotomoe/io/internal/config"
	pebblestore "github.com/hotomoe/io/internal/storage/pebble"
)

func TestGetenvDefault(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })

	env := map[string]string{"SET_VAR": "from-env"}
	getenv = func(key string) string { return env[key] }

	if got := getenvDefault("SET_VAR", "fallback"); got != "from-env" {
		t.Errorf("set variable: got %q, want from-env", got)
	}
	if got := getenvDefault("UNSET_VAR", "fallback"); got != "fallback" {
		t.Errorf("unset variable: got %q, want fallback", got)
	}
}

// Run should start cleanly against an empty data dir and exit on context
// cancellation.
func TestRunShutsDownOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
		Config:  cfgpkg.Default(),
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Errorf("Run: %v", err)
	}
}
