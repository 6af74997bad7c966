// Package log provides the structured logging facade used across the engine.
//
// It exposes a small Logger interface with leveled, Field-based methods.
// Internally records are routed through Go's standard library slog via a
// custom handler, which keeps the formatter/output pipeline consistent while
// allowing interop with the slog ecosystem.
//
// Quick start:
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("dispatch"))
//	l.Info("note dispatched", log.Int("matched", 3))
//
// Use RedirectStdLog to route standard library logs (e.g. Pebble's) through
// the same pipeline.
package log
