package antenna

import (
	"context"

	"github.com/hotomoe/io/internal/bus"
	"github.com/hotomoe/io/internal/feed"
	"github.com/hotomoe/io/internal/note"
	logpkg "github.com/hotomoe/io/pkg/log"
)

// EngineOptions wires an Engine.
type EngineOptions struct {
	// Bus carries antenna lifecycle events in and delivery notifications
	// out.
	Bus *bus.Bus
	// Feeds is the bounded feed store fanout writes into.
	Feeds *feed.Store
	// Snapshot supplies the one-time authoritative antenna load.
	Snapshot SnapshotSource
	// Lookups supplies mute/block/follow/list membership queries.
	Lookups Lookups
	// Policies resolves per-owner feed limits.
	Policies PolicySource
	Logger   logpkg.Logger

	DefaultFeedLimit   int
	HomeRequiresFollow bool
	EvalConcurrency    int
	LookupConcurrency  int
}

// Engine is the assembled fan-out engine: the registry listening on the
// event feed plus the dispatcher serving OnNoteCreated.
type Engine struct {
	registry   *Registry
	dispatcher *Dispatcher
}

// NewEngine wires the registry, evaluator, limit resolver, and dispatcher.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	registry := NewRegistry(opts.Snapshot, opts.Bus, logger.WithComponent("registry"))
	eval := NewEvaluator(opts.Lookups, opts.HomeRequiresFollow)
	limits := NewLimitResolver(opts.Policies, opts.LookupConcurrency, logger.WithComponent("limits"))
	dispatcher := NewDispatcher(DispatcherOptions{
		Registry:         registry,
		Eval:             eval,
		Limits:           limits,
		Feeds:            opts.Feeds,
		Bus:              opts.Bus,
		Logger:           logger.WithComponent("dispatch"),
		DefaultFeedLimit: opts.DefaultFeedLimit,
		EvalConcurrency:  opts.EvalConcurrency,
	})
	return &Engine{registry: registry, dispatcher: dispatcher}
}

// OnNoteCreated dispatches one newly created note.
func (e *Engine) OnNoteCreated(ctx context.Context, n *note.Note, author *note.AuthorSummary) error {
	return e.dispatcher.OnNoteCreated(ctx, n, author)
}

// OnAntennaEvent ingests one antenna lifecycle envelope directly, for
// callers not wired through the bus.
func (e *Engine) OnAntennaEvent(payload []byte) {
	e.registry.ApplyEvent(payload)
}

// Registry exposes the engine's antenna registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Shutdown releases the event feed subscription and any held resources.
func (e *Engine) Shutdown() {
	e.registry.Close()
}
