package bus

import (
	"errors"
	"sync"

	"github.com/hotomoe/io/pkg/id"
	logpkg "github.com/hotomoe/io/pkg/log"
)

// Event is a single published message as delivered to subscribers.
type Event struct {
	// ID is a process-local, time-sortable event id, useful for tracing.
	ID id.ID
	// Channel the event was published on.
	Channel string
	// Payload is the raw message body. Subscribers must not mutate it.
	Payload []byte
}

// Handler consumes events delivered to a subscription. Handlers run on the
// subscription's own goroutine; a slow handler delays only its own
// subscription.
type Handler func(ev Event)

// ErrClosed is returned by Publish after the bus has been closed.
var ErrClosed = errors.New("bus: closed")

// Options configures a Bus.
type Options struct {
	// Buffer is the per-subscription event buffer. When a subscriber's
	// buffer is full, new events for it are dropped (broadcast semantics,
	// no replay). Defaults to 1024.
	Buffer int
	Logger logpkg.Logger
}

// Bus is an in-process broadcast channel keyed by channel name.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	closed bool

	gen    *id.Generator
	logger logpkg.Logger
	buffer int
	wg     sync.WaitGroup
}

// New creates a Bus.
func New(opts Options) *Bus {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("bus")
	}
	return &Bus{
		subs:   map[string][]*Subscription{},
		gen:    id.NewGenerator(),
		logger: logger,
		buffer: opts.Buffer,
	}
}

// Publish delivers payload to every current subscriber of channel. Delivery
// is asynchronous; a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	ev := Event{ID: b.gen.Next(), Channel: channel, Payload: payload}
	for _, sub := range b.subs[channel] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				logpkg.Str("channel", channel),
				logpkg.Str("event", ev.ID.String()))
		}
	}
	return nil
}

// Subscribe registers h on channel and returns a handle whose Close
// unsubscribes. Events published before Subscribe returns are not delivered.
func (b *Bus) Subscribe(channel string, h Handler) *Subscription {
	sub := &Subscription{
		bus:     b,
		channel: channel,
		handler: h,
		ch:      make(chan Event, b.buffer),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return sub
	}
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case ev := <-sub.ch:
				sub.handler(ev)
			case <-sub.done:
				return
			}
		}
	}()
	return sub
}

// Close shuts down the bus and all subscriptions, waiting for in-flight
// handlers to return.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = map[string][]*Subscription{}
	b.mu.Unlock()

	for _, list := range subs {
		for _, sub := range list {
			sub.stop()
		}
	}
	b.wg.Wait()
}

// Subscription is a disposable handle to a registered handler.
type Subscription struct {
	bus     *Bus
	channel string
	handler Handler
	ch      chan Event
	done    chan struct{}
	once    sync.Once
}

// Close unsubscribes. Events already buffered but not yet handled are
// discarded. Close is idempotent.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	list := s.bus.subs[s.channel]
	for i, cand := range list {
		if cand == s {
			s.bus.subs[s.channel] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()
	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}
