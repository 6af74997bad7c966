package antenna

import (
	"context"
	"errors"
	"sync"
)

var errPolicyMissing = errors.New("policy missing")

// fakeLookups serves membership queries from fixed maps keyed by viewer (or
// list id), with optional injected errors.
type fakeLookups struct {
	muting    map[string]MemberSet
	blockers  map[string]MemberSet
	following map[string]MemberSet
	lists     map[string]MemberSet

	mutingErr    error
	blockersErr  error
	followingErr error
	listsErr     error
}

func (f *fakeLookups) Muting(_ context.Context, viewerID string) (MemberSet, error) {
	if f.mutingErr != nil {
		return nil, f.mutingErr
	}
	return f.muting[viewerID], nil
}

func (f *fakeLookups) BlockingMe(_ context.Context, viewerID string) (MemberSet, error) {
	if f.blockersErr != nil {
		return nil, f.blockersErr
	}
	return f.blockers[viewerID], nil
}

func (f *fakeLookups) Following(_ context.Context, viewerID string) (MemberSet, error) {
	if f.followingErr != nil {
		return nil, f.followingErr
	}
	return f.following[viewerID], nil
}

func (f *fakeLookups) ListMembers(_ context.Context, listID string) (MemberSet, error) {
	if f.listsErr != nil {
		return nil, f.listsErr
	}
	return f.lists[listID], nil
}

// fakePolicies resolves limits from a map, failing for owners listed in
// errs, and records every lookup.
type fakePolicies struct {
	mu     sync.Mutex
	limits map[string]int
	errs   map[string]error
	calls  []string
}

func (f *fakePolicies) PolicyOf(_ context.Context, ownerID string) (Policy, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ownerID)
	f.mu.Unlock()
	if err, ok := f.errs[ownerID]; ok {
		return Policy{}, err
	}
	limit, ok := f.limits[ownerID]
	if !ok {
		return Policy{}, errPolicyMissing
	}
	return Policy{FeedLimit: limit}, nil
}

func (f *fakePolicies) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSnapshot serves the one-time authoritative load, counting calls.
type fakeSnapshot struct {
	mu       sync.Mutex
	antennas []*Antenna
	err      error
	calls    int
}

func (f *fakeSnapshot) ActiveAntennas(_ context.Context) ([]*Antenna, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.antennas, nil
}

func (f *fakeSnapshot) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func strptr(s string) *string { return &s }
