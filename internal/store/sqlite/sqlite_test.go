package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/hotomoe/io/internal/antenna"
)

type capturedPublish struct {
	channel string
	payload []byte
}

type capturingPublisher struct {
	published []capturedPublish
}

func (p *capturingPublisher) Publish(channel string, payload []byte) error {
	p.published = append(p.published, capturedPublish{channel: channel, payload: payload})
	return nil
}

func newTestStore(t *testing.T) (*Store, *capturingPublisher) {
	t.Helper()
	pub := &capturingPublisher{}
	s, err := New(filepath.Join(t.TempDir(), "test.db"), pub)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, pub
}

func testAntenna(owner string) *antenna.Antenna {
	return &antenna.Antenna{
		OwnerID:         owner,
		IsActive:        true,
		Source:          antenna.SourceHome,
		Keywords:        [][]string{{"gopher"}},
		ExcludeKeywords: [][]string{},
		WithReplies:     true,
	}
}

func TestAntennaRoundTrip(t *testing.T) {
	s, pub := newTestStore(t)
	ctx := context.Background()

	a := testAntenna("owner-1")
	if err := s.CreateAntenna(ctx, a); err != nil {
		t.Fatalf("CreateAntenna: %v", err)
	}
	if a.ID == "" {
		t.Fatal("CreateAntenna did not assign an id")
	}
	if a.CreatedAt.IsZero() || a.LastUsedAt.IsZero() {
		t.Fatal("CreateAntenna did not assign timestamps")
	}

	got, err := s.GetAntenna(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAntenna: %v", err)
	}
	opts := []cmp.Option{
		cmpopts.IgnoreUnexported(antenna.Antenna{}),
		cmpopts.EquateApproxTime(time.Second),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(a, got, opts...); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if len(pub.published) != 1 || pub.published[0].channel != antenna.EventChannel {
		t.Fatalf("expected one event on %q, got %+v", antenna.EventChannel, pub.published)
	}
	ev, err := antenna.DecodeEvent(pub.published[0].payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Type != antenna.EventCreated || ev.Antenna.ID != a.ID {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestUpdateAndDeletePublishEvents(t *testing.T) {
	s, pub := newTestStore(t)
	ctx := context.Background()

	a := testAntenna("owner-1")
	if err := s.CreateAntenna(ctx, a); err != nil {
		t.Fatalf("CreateAntenna: %v", err)
	}

	a.Keywords = [][]string{{"gopher", "generics"}}
	a.IsActive = false
	if err := s.UpdateAntenna(ctx, a); err != nil {
		t.Fatalf("UpdateAntenna: %v", err)
	}
	if err := s.DeleteAntenna(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAntenna: %v", err)
	}

	want := []antenna.EventType{antenna.EventCreated, antenna.EventUpdated, antenna.EventDeleted}
	if len(pub.published) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(pub.published))
	}
	for i, typ := range want {
		ev, err := antenna.DecodeEvent(pub.published[i].payload)
		if err != nil {
			t.Fatalf("DecodeEvent[%d]: %v", i, err)
		}
		if ev.Type != typ {
			t.Errorf("event[%d]: got %q, want %q", i, ev.Type, typ)
		}
	}
}

func TestUpdateUnknownAntenna(t *testing.T) {
	s, _ := newTestStore(t)
	a := testAntenna("owner-1")
	a.ID = "no-such-antenna"
	a.LastUsedAt = time.Now()
	if err := s.UpdateAntenna(context.Background(), a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateAntenna: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteAntenna(context.Background(), "no-such-antenna"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteAntenna: got %v, want ErrNotFound", err)
	}
}

func TestActiveAntennas(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	active := testAntenna("owner-1")
	inactive := testAntenna("owner-2")
	inactive.IsActive = false
	for _, a := range []*antenna.Antenna{active, inactive} {
		if err := s.CreateAntenna(ctx, a); err != nil {
			t.Fatalf("CreateAntenna: %v", err)
		}
	}

	got, err := s.ActiveAntennas(ctx)
	if err != nil {
		t.Fatalf("ActiveAntennas: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Fatalf("expected only the active antenna, got %+v", got)
	}
}

func TestPolicyUpsert(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PolicyOf(ctx, "owner-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("PolicyOf before set: got %v, want ErrNotFound", err)
	}
	if err := s.SetPolicy(ctx, "owner-1", 100); err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
	if err := s.SetPolicy(ctx, "owner-1", 250); err != nil {
		t.Fatalf("SetPolicy upsert: %v", err)
	}
	p, err := s.PolicyOf(ctx, "owner-1")
	if err != nil {
		t.Fatalf("PolicyOf: %v", err)
	}
	if p.FeedLimit != 250 {
		t.Errorf("FeedLimit: got %d, want 250", p.FeedLimit)
	}
}

func TestMembershipLookups(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.AddMute(ctx, "viewer", "noisy"); err != nil {
		t.Fatalf("AddMute: %v", err)
	}
	if err := s.AddBlock(ctx, "hostile", "viewer"); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := s.AddFollow(ctx, "viewer", "friend"); err != nil {
		t.Fatalf("AddFollow: %v", err)
	}
	if err := s.AddListMember(ctx, "list-1", "member"); err != nil {
		t.Fatalf("AddListMember: %v", err)
	}
	// Duplicates are ignored.
	if err := s.AddFollow(ctx, "viewer", "friend"); err != nil {
		t.Fatalf("AddFollow duplicate: %v", err)
	}

	muting, err := s.Muting(ctx, "viewer")
	if err != nil {
		t.Fatalf("Muting: %v", err)
	}
	if !muting.Has("noisy") {
		t.Error("Muting should contain noisy")
	}

	blockers, err := s.BlockingMe(ctx, "viewer")
	if err != nil {
		t.Fatalf("BlockingMe: %v", err)
	}
	if !blockers.Has("hostile") {
		t.Error("BlockingMe should contain hostile")
	}

	following, err := s.Following(ctx, "viewer")
	if err != nil {
		t.Fatalf("Following: %v", err)
	}
	if len(following) != 1 || !following.Has("friend") {
		t.Errorf("Following: got %v, want {friend}", following)
	}

	members, err := s.ListMembers(ctx, "list-1")
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if !members.Has("member") {
		t.Error("ListMembers should contain member")
	}

	empty, err := s.ListMembers(ctx, "list-unknown")
	if err != nil {
		t.Fatalf("ListMembers unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty set, got %v", empty)
	}
}

func TestTouchLastUsed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := testAntenna("owner-1")
	if err := s.CreateAntenna(ctx, a); err != nil {
		t.Fatalf("CreateAntenna: %v", err)
	}
	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := s.TouchLastUsed(ctx, a.ID, at); err != nil {
		t.Fatalf("TouchLastUsed: %v", err)
	}
	got, err := s.GetAntenna(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAntenna: %v", err)
	}
	if !got.LastUsedAt.Equal(at) {
		t.Errorf("LastUsedAt: got %v, want %v", got.LastUsedAt, at)
	}
}
