// Package runtime assembles the process-wide services: the Pebble feed
// store, the authoritative SQLite store, the in-process bus, and the fan-out
// engine on top of them. Commands construct a Runtime and tear it down on
// exit.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hotomoe/io/internal/antenna"
	"github.com/hotomoe/io/internal/bus"
	"github.com/hotomoe/io/internal/config"
	"github.com/hotomoe/io/internal/feed"
	pebblestore "github.com/hotomoe/io/internal/storage/pebble"
	sqlitestore "github.com/hotomoe/io/internal/store/sqlite"
	logpkg "github.com/hotomoe/io/pkg/log"
)

// Options configures a Runtime.
type Options struct {
	// DataDir is the root directory for all persistent state. The Pebble
	// feed database lives under DataDir/feeds and the SQLite database at
	// DataDir/antenna.db.
	DataDir string
	Config  config.Config
	Logger  logpkg.Logger

	// Fsync and FsyncInterval set the feed store's durability mode.
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
}

// Runtime holds the wired services of one process.
type Runtime struct {
	logger logpkg.Logger

	feedDB *pebblestore.DB
	store  *sqlitestore.Store
	bus    *bus.Bus
	feeds  *feed.Store
	engine *antenna.Engine
}

// Open builds a Runtime from Options. On error, anything already opened is
// closed before returning.
func Open(opts Options) (*Runtime, error) {
	if opts.DataDir == "" {
		opts.DataDir = config.DefaultDataDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	feedDB, err := pebblestore.Open(pebblestore.Options{
		DataDir:       filepath.Join(opts.DataDir, "feeds"),
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("open feed store: %w", err)
	}

	eventBus := bus.New(bus.Options{
		Buffer: opts.Config.BusBuffer,
		Logger: logger.WithComponent("bus"),
	})

	store, err := sqlitestore.New(filepath.Join(opts.DataDir, "antenna.db"), eventBus)
	if err != nil {
		eventBus.Close()
		_ = feedDB.Close()
		return nil, fmt.Errorf("open antenna store: %w", err)
	}

	feeds := feed.NewStore(feedDB)
	engine := antenna.NewEngine(antenna.EngineOptions{
		Bus:                eventBus,
		Feeds:              feeds,
		Snapshot:           store,
		Lookups:            store,
		Policies:           store,
		Logger:             logger.WithComponent("engine"),
		DefaultFeedLimit:   opts.Config.DefaultFeedLimit,
		HomeRequiresFollow: opts.Config.HomeRequiresFollow,
		EvalConcurrency:    opts.Config.EvalConcurrency,
		LookupConcurrency:  opts.Config.LookupConcurrency,
	})

	logger.Info("runtime opened", logpkg.Str("data_dir", opts.DataDir))
	return &Runtime{
		logger: logger,
		feedDB: feedDB,
		store:  store,
		bus:    eventBus,
		feeds:  feeds,
		engine: engine,
	}, nil
}

// Bus returns the in-process event bus.
func (r *Runtime) Bus() *bus.Bus { return r.bus }

// Store returns the authoritative antenna store.
func (r *Runtime) Store() *sqlitestore.Store { return r.store }

// Feeds returns the bounded feed store.
func (r *Runtime) Feeds() *feed.Store { return r.feeds }

// Engine returns the fan-out engine.
func (r *Runtime) Engine() *antenna.Engine { return r.engine }

// Close tears down the runtime: the engine's subscriptions first, then the
// bus, then the databases.
func (r *Runtime) Close() error {
	r.engine.Shutdown()
	r.bus.Close()

	var firstErr error
	if err := r.store.Close(); err != nil {
		firstErr = fmt.Errorf("close antenna store: %w", err)
	}
	if err := r.feedDB.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close feed store: %w", err)
	}
	if firstErr != nil {
		return firstErr
	}
	r.logger.Info("runtime closed")
	return nil
}
