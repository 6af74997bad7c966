package serverrun

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotomoe/io/internal/bus"
	cfgpkg "github.com/hotomoe/io/internal/config"
	"github.com/hotomoe/io/internal/note"
	"github.com/hotomoe/io/internal/runtime"
	pebblestore "github.com/hotomoe/io/internal/storage/pebble"
	logpkg "github.com/hotomoe/io/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run opens the runtime, attaches the fan-out engine to the note intake
// channel, and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// don't pass a signal-aware context still get clean shutdown.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := &logpkg.Config{
		Level:  getenvDefault("ANTENNA_LOG_LEVEL", "info"),
		Format: getenvDefault("ANTENNA_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger.
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		DataDir:       opts.DataDir,
		Config:        opts.Config,
		Logger:        procLogger,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	procLogger.Info("starting antenna server",
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("note_channel", opts.Config.NoteChannel),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	engine := rt.Engine()
	intakeLogger := procLogger.WithComponent("intake")
	intake := rt.Bus().Subscribe(opts.Config.NoteChannel, func(ev bus.Event) {
		var created note.CreatedEvent
		if err := json.Unmarshal(ev.Payload, &created); err != nil {
			intakeLogger.Warn("dropping malformed note event",
				logpkg.Str("event", ev.ID.String()),
				logpkg.Err(err))
			return
		}
		if created.Note == nil || created.Author == nil {
			intakeLogger.Warn("dropping note event without note or author",
				logpkg.Str("event", ev.ID.String()))
			return
		}
		if err := engine.OnNoteCreated(sctx, created.Note, created.Author); err != nil {
			intakeLogger.Error("dispatch failed",
				logpkg.Str("note", created.Note.ID),
				logpkg.Err(err))
		}
	})
	defer intake.Close()

	<-sctx.Done()
	procLogger.Info("shutting down")
	return nil
}
