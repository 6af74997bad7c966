package antenna

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hotomoe/io/internal/bus"
	"github.com/hotomoe/io/internal/feed"
	"github.com/hotomoe/io/internal/note"
	logpkg "github.com/hotomoe/io/pkg/log"
)

// DispatcherOptions wires a Dispatcher.
type DispatcherOptions struct {
	Registry *Registry
	Eval     *Evaluator
	Limits   *LimitResolver
	Feeds    *feed.Store
	// Bus receives delivery notifications. Optional; nil disables them.
	Bus    *bus.Bus
	Logger logpkg.Logger
	// DefaultFeedLimit is used when even the synchronous policy fallback
	// fails for an owner.
	DefaultFeedLimit int
	// EvalConcurrency bounds concurrent predicate evaluations per dispatch.
	// Zero means unbounded.
	EvalConcurrency int
}

// Dispatcher runs one fan-out dispatch per created note. Dispatches are
// independent: OnNoteCreated is safe to call concurrently and a slow or
// failed dispatch never blocks the next one.
type Dispatcher struct {
	registry *Registry
	eval     *Evaluator
	limits   *LimitResolver
	feeds    *feed.Store
	bus      *bus.Bus
	logger   logpkg.Logger

	defaultLimit    int
	evalConcurrency int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("dispatch")
	}
	defaultLimit := opts.DefaultFeedLimit
	if defaultLimit <= 0 {
		defaultLimit = 200
	}
	return &Dispatcher{
		registry:        opts.Registry,
		eval:            opts.Eval,
		limits:          opts.Limits,
		feeds:           opts.Feeds,
		bus:             opts.Bus,
		logger:          logger,
		defaultLimit:    defaultLimit,
		evalConcurrency: opts.EvalConcurrency,
	}
}

// OnNoteCreated evaluates every active antenna against the note, writes the
// note id into each matching antenna's feed as one atomic flush, and emits a
// delivery notification per matched antenna. A failure scoped to one
// antenna degrades that antenna only.
func (d *Dispatcher) OnNoteCreated(ctx context.Context, n *note.Note, author *note.AuthorSummary) error {
	antennas, err := d.registry.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("antenna snapshot: %w", err)
	}
	if len(antennas) == 0 {
		return nil
	}

	var mu sync.Mutex
	matched := make([]*Antenna, 0)
	g, gctx := errgroup.WithContext(ctx)
	if d.evalConcurrency > 0 {
		g.SetLimit(d.evalConcurrency)
	}
	for _, a := range antennas {
		// Updates can deactivate an antenna after it entered the registry.
		if !a.IsActive {
			continue
		}
		a := a
		g.Go(func() error {
			// Matches never returns an error: a failure inside one
			// antenna's evaluation degrades to a non-match.
			if d.eval.Matches(gctx, a, n, author) {
				mu.Lock()
				matched = append(matched, a)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(matched) == 0 {
		return nil
	}

	owners := make([]string, 0, len(matched))
	for _, a := range matched {
		owners = append(owners, a.OwnerID)
	}
	limits := d.limits.ResolveLimits(ctx, owners)

	pushes := make([]feed.Push, 0, len(matched))
	delivered := make([]*Antenna, 0, len(matched))
	for _, a := range matched {
		limit, ok := limits[a.OwnerID]
		if !ok {
			limit, err = d.limits.Resolve(ctx, a.OwnerID)
			if err != nil {
				d.logger.Warn("policy fallback failed, using default feed limit",
					logpkg.Str("owner", a.OwnerID), logpkg.Err(err))
				limit = d.defaultLimit
			}
			limits[a.OwnerID] = limit
		}
		if limit < 1 {
			continue
		}
		pushes = append(pushes, feed.Push{AntennaID: a.ID, NoteID: n.ID, Limit: limit})
		delivered = append(delivered, a)
	}
	if len(pushes) == 0 {
		return nil
	}

	if err := d.feeds.PushAll(ctx, pushes); err != nil {
		// A dropped delivery, not a dispatch failure: downstream consumers
		// tolerate at-most-once semantics.
		d.logger.Error("feed fanout write failed",
			logpkg.Str("note", n.ID), logpkg.Int("antennas", len(pushes)), logpkg.Err(err))
		return nil
	}

	if d.bus != nil {
		payload, err := EncodeDelivery(n)
		if err != nil {
			d.logger.Error("encode delivery notification", logpkg.Err(err))
			return nil
		}
		for _, a := range delivered {
			if err := d.bus.Publish(DeliveryChannel(a.ID), payload); err != nil {
				d.logger.Warn("delivery notification failed",
					logpkg.Str("antenna", a.ID), logpkg.Err(err))
			}
		}
	}
	return nil
}
