package antenna

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hotomoe/io/internal/note"
)

// MemberSet is a read-only membership snapshot returned by lookups, valid
// for the duration of one evaluation.
type MemberSet map[string]struct{}

// Has reports whether id belongs to the set.
func (s MemberSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// NewMemberSet builds a MemberSet from ids.
func NewMemberSet(ids ...string) MemberSet {
	s := make(MemberSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Lookups supplies the external membership queries matching depends on.
// Implementations are expected to be read-mostly and cached; a failed lookup
// degrades the affected clause to "no match", never to an error.
type Lookups interface {
	// Muting returns the user ids the viewer has muted.
	Muting(ctx context.Context, viewerID string) (MemberSet, error)
	// BlockingMe returns the user ids that block the viewer.
	BlockingMe(ctx context.Context, viewerID string) (MemberSet, error)
	// Following returns the user ids the viewer follows.
	Following(ctx context.Context, viewerID string) (MemberSet, error)
	// ListMembers returns the user ids belonging to a list.
	ListMembers(ctx context.Context, listID string) (MemberSet, error)
}

// VisibilityFilter resolves a note's visibility against a viewer.
type VisibilityFilter struct {
	lookups Lookups
}

// NewVisibilityFilter creates a VisibilityFilter over the given lookups.
func NewVisibilityFilter(lookups Lookups) *VisibilityFilter {
	return &VisibilityFilter{lookups: lookups}
}

// IsVisible reports whether the viewer may see the note. Rules, first false
// wins: the author blocks the viewer; the viewer mutes the author; for
// followers visibility the viewer must follow the author (self always
// passes); for specified visibility the viewer must be a recipient.
func (f *VisibilityFilter) IsVisible(ctx context.Context, viewerID string, n *note.Note) bool {
	var muting, blockers MemberSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		muting, err = f.lookups.Muting(gctx, viewerID)
		return err
	})
	g.Go(func() error {
		var err error
		blockers, err = f.lookups.BlockingMe(gctx, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return false
	}

	if blockers.Has(n.AuthorID) {
		return false
	}
	if muting.Has(n.AuthorID) {
		return false
	}

	switch n.Visibility {
	case note.VisibilityFollowers:
		if viewerID == n.AuthorID {
			return true
		}
		following, err := f.lookups.Following(ctx, viewerID)
		if err != nil {
			return false
		}
		return following.Has(n.AuthorID)
	case note.VisibilitySpecified:
		if viewerID == n.AuthorID {
			return true
		}
		for _, id := range n.VisibleUserIDs {
			if id == viewerID {
				return true
			}
		}
		return false
	}
	return true
}
