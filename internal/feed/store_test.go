package feed

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	pebblestore "github.com/hotomoe/io/internal/storage/pebble"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestPushTrimsToLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const limit = 5
	const pushed = 8
	for i := 0; i < pushed; i++ {
		if err := s.Push(ctx, "a1", fmt.Sprintf("note-%d", i), limit); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	got, err := s.Read("a1", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// the limit most recent ids, newest first, oldest evicted
	want := []string{"note-7", "note-6", "note-5", "note-4", "note-3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("feed mismatch (-want +got):\n%s", diff)
	}
	if n := s.Count("a1"); n != limit {
		t.Fatalf("count = %d, want %d", n, limit)
	}
}

func TestPushAllIsOneFlushAcrossFeeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pushes := []Push{
		{AntennaID: "a1", NoteID: "n1", Limit: 10},
		{AntennaID: "a2", NoteID: "n1", Limit: 10},
		{AntennaID: "a3", NoteID: "n1", Limit: 10},
	}
	if err := s.PushAll(ctx, pushes); err != nil {
		t.Fatalf("push all: %v", err)
	}
	for _, id := range []string{"a1", "a2", "a3"} {
		got, err := s.Read(id, 0)
		if err != nil {
			t.Fatalf("read %s: %v", id, err)
		}
		if len(got) != 1 || got[0] != "n1" {
			t.Fatalf("feed %s = %v, want [n1]", id, got)
		}
	}
}

func TestReadLimitAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := s.Push(ctx, "a1", fmt.Sprintf("n%d", i), 100); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	got, err := s.Read("a1", 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff([]string{"n3", "n2"}, got); diff != "" {
		t.Fatalf("read mismatch (-want +got):\n%s", diff)
	}
}

func TestLimitShrinkEvictsDownTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := s.Push(ctx, "a1", fmt.Sprintf("n%d", i), 10); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	// pushing with a smaller limit trims the backlog in the same flush
	if err := s.Push(ctx, "a1", "n6", 3); err != nil {
		t.Fatalf("push with shrunk limit: %v", err)
	}
	got, err := s.Read("a1", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff([]string{"n6", "n5", "n4"}, got); diff != "" {
		t.Fatalf("feed mismatch (-want +got):\n%s", diff)
	}
}

func TestPushRejectsNonPositiveLimit(t *testing.T) {
	s := newTestStore(t)
	if err := s.Push(context.Background(), "a1", "n1", 0); err == nil {
		t.Fatalf("expected error for limit 0")
	}
}
