package antenna

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hotomoe/io/internal/bus"
	logpkg "github.com/hotomoe/io/pkg/log"
)

// SnapshotSource loads the authoritative set of active antennas. The
// registry calls it exactly once per process lifetime, on first access.
type SnapshotSource interface {
	ActiveAntennas(ctx context.Context) ([]*Antenna, error)
}

// Registry is the in-memory, lazily populated cache of active antennas.
// After the one-time authoritative load it trusts only the event feed; a
// process that misses an event diverges until restart, which is the
// accepted tradeoff for never re-polling storage on the hot path.
type Registry struct {
	mu      sync.RWMutex
	loaded  bool
	byID    map[string]*Antenna
	ordered []*Antenna // copy-on-write; GetActive returns it as-is

	src    SnapshotSource
	sub    *bus.Subscription
	logger logpkg.Logger
}

// NewRegistry creates a Registry and, when b is non-nil, subscribes it to
// the antenna event channel. Close releases the subscription.
func NewRegistry(src SnapshotSource, b *bus.Bus, logger logpkg.Logger) *Registry {
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("registry")
	}
	r := &Registry{
		byID:   map[string]*Antenna{},
		src:    src,
		logger: logger,
	}
	if b != nil {
		r.sub = b.Subscribe(EventChannel, func(ev bus.Event) { r.ApplyEvent(ev.Payload) })
	}
	return r
}

// GetActive returns the current antenna snapshot, performing the one-time
// authoritative load on first access. The returned slice is immutable:
// concurrent registry mutations build a fresh slice, so a dispatch sees a
// consistent view for its whole run.
func (r *Registry) GetActive(ctx context.Context) ([]*Antenna, error) {
	r.mu.RLock()
	if r.loaded {
		snap := r.ordered
		r.mu.RUnlock()
		return snap, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.ordered, nil
	}
	loaded, err := r.src.ActiveAntennas(ctx)
	if err != nil {
		// Not marked loaded: the next access retries the initial load.
		return nil, fmt.Errorf("load active antennas: %w", err)
	}
	byID := make(map[string]*Antenna, len(loaded))
	ordered := make([]*Antenna, 0, len(loaded))
	for _, a := range loaded {
		a.Normalize()
		byID[a.ID] = a
		ordered = append(ordered, a)
	}
	r.byID = byID
	r.ordered = ordered
	r.loaded = true
	r.logger.Info("antenna registry loaded", logpkg.Int("count", len(ordered)))
	return r.ordered, nil
}

// ApplyEvent ingests one wire envelope from the event feed. Malformed or
// unrecognized events are dropped with a log line; they never fail the
// registry. Application is idempotent and last-applied-wins per antenna id.
func (r *Registry) ApplyEvent(payload []byte) {
	ev, err := DecodeEvent(payload)
	if err != nil {
		if !errors.Is(err, ErrWrongChannel) {
			r.logger.Warn("dropping malformed antenna event", logpkg.Err(err))
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case EventCreated, EventUpdated:
		// Upsert covers both kinds: an update for an antenna this process
		// never saw (activated after the initial load, or a race with it)
		// appends instead of being lost.
		r.upsertLocked(ev.Antenna)
	case EventDeleted:
		r.removeLocked(ev.ID)
	}
}

func (r *Registry) upsertLocked(a *Antenna) {
	if _, ok := r.byID[a.ID]; ok {
		next := make([]*Antenna, len(r.ordered))
		copy(next, r.ordered)
		for i, cur := range next {
			if cur.ID == a.ID {
				next[i] = a
				break
			}
		}
		r.ordered = next
	} else {
		r.ordered = append(r.ordered[:len(r.ordered):len(r.ordered)], a)
	}
	r.byID[a.ID] = a
}

func (r *Registry) removeLocked(id string) {
	if _, ok := r.byID[id]; !ok {
		return // delete for an unknown id is a no-op
	}
	delete(r.byID, id)
	next := make([]*Antenna, 0, len(r.ordered)-1)
	for _, cur := range r.ordered {
		if cur.ID != id {
			next = append(next, cur)
		}
	}
	r.ordered = next
}

// Close releases the event feed subscription.
func (r *Registry) Close() {
	if r.sub != nil {
		r.sub.Close()
	}
}
