package antenna

import (
	"context"
	"testing"
	"time"

	"github.com/hotomoe/io/internal/bus"
)

// End to end: an antenna created over the bus participates in the next
// dispatch, and a deleted one stops.
func TestEngineFollowsAntennaEvents(t *testing.T) {
	b := bus.New(bus.Options{Buffer: 16})
	defer b.Close()
	feeds := newTestFeeds(t)

	e := NewEngine(EngineOptions{
		Bus:              b,
		Feeds:            feeds,
		Snapshot:         &fakeSnapshot{},
		Lookups:          baseLookups(),
		Policies:         &fakePolicies{limits: map[string]int{"alice": 100}},
		DefaultFeedLimit: 50,
	})
	defer e.Shutdown()

	// Force the initial (empty) load before the event arrives, so the event
	// path is what inserts the antenna.
	if _, err := e.Registry().GetActive(context.Background()); err != nil {
		t.Fatalf("GetActive: %v", err)
	}

	created := &Antenna{ID: "a1", OwnerID: "alice", IsActive: true, Source: SourceHome, WithReplies: true}
	payload, err := EncodeCreated(created)
	if err != nil {
		t.Fatalf("EncodeCreated: %v", err)
	}
	if err := b.Publish(EventChannel, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitForAntennas(t, e, 1)

	n := publicNote("stranger", "hello")
	author := localAuthor("stranger", "stranger")
	if err := e.OnNoteCreated(context.Background(), &n, &author); err != nil {
		t.Fatalf("OnNoteCreated: %v", err)
	}
	if got := feeds.Count("a1"); got != 1 {
		t.Fatalf("feed a1: got %d entries, want 1", got)
	}

	deleted, err := EncodeDeleted("a1")
	if err != nil {
		t.Fatalf("EncodeDeleted: %v", err)
	}
	if err := b.Publish(EventChannel, deleted); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitForAntennas(t, e, 0)

	n2 := publicNote("stranger", "again")
	n2.ID = "n2"
	if err := e.OnNoteCreated(context.Background(), &n2, &author); err != nil {
		t.Fatalf("OnNoteCreated: %v", err)
	}
	if got := feeds.Count("a1"); got != 1 {
		t.Fatalf("deleted antenna still receives notes: %d entries", got)
	}
}

// waitForAntennas polls until the registry holds want antennas; bus delivery
// is asynchronous.
func waitForAntennas(t *testing.T, e *Engine, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		antennas, err := e.Registry().GetActive(context.Background())
		if err != nil {
			t.Fatalf("GetActive: %v", err)
		}
		if len(antennas) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("registry has %d antennas, want %d", len(antennas), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
