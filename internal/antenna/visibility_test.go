package antenna

import (
	"context"
	"errors"
	"testing"

	"github.com/hotomoe/io/internal/note"
)

func TestIsVisible(t *testing.T) {
	lookups := &fakeLookups{
		muting:    map[string]MemberSet{"viewer": NewMemberSet("muted-author")},
		blockers:  map[string]MemberSet{"viewer": NewMemberSet("hostile-author")},
		following: map[string]MemberSet{"viewer": NewMemberSet("followed-author")},
	}
	f := NewVisibilityFilter(lookups)

	tests := []struct {
		name string
		note note.Note
		want bool
	}{
		{
			name: "public note visible",
			note: note.Note{AuthorID: "stranger", Visibility: note.VisibilityPublic},
			want: true,
		},
		{
			name: "home note visible",
			note: note.Note{AuthorID: "stranger", Visibility: note.VisibilityHome},
			want: true,
		},
		{
			name: "author blocks viewer",
			note: note.Note{AuthorID: "hostile-author", Visibility: note.VisibilityPublic},
			want: false,
		},
		{
			name: "viewer mutes author",
			note: note.Note{AuthorID: "muted-author", Visibility: note.VisibilityPublic},
			want: false,
		},
		{
			name: "followers note from followed author",
			note: note.Note{AuthorID: "followed-author", Visibility: note.VisibilityFollowers},
			want: true,
		},
		{
			name: "followers note from stranger",
			note: note.Note{AuthorID: "stranger", Visibility: note.VisibilityFollowers},
			want: false,
		},
		{
			name: "own followers note",
			note: note.Note{AuthorID: "viewer", Visibility: note.VisibilityFollowers},
			want: true,
		},
		{
			name: "specified note addressed to viewer",
			note: note.Note{
				AuthorID:       "stranger",
				Visibility:     note.VisibilitySpecified,
				VisibleUserIDs: []string{"other", "viewer"},
			},
			want: true,
		},
		{
			name: "specified note not addressed to viewer",
			note: note.Note{
				AuthorID:       "stranger",
				Visibility:     note.VisibilitySpecified,
				VisibleUserIDs: []string{"other"},
			},
			want: false,
		},
		{
			name: "own specified note",
			note: note.Note{AuthorID: "viewer", Visibility: note.VisibilitySpecified},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.note
			if got := f.IsVisible(context.Background(), "viewer", &n); got != tt.want {
				t.Errorf("IsVisible = %v, want %v", got, tt.want)
			}
		})
	}
}

// A failed lookup hides the note rather than surfacing an error.
func TestIsVisibleLookupFailure(t *testing.T) {
	n := &note.Note{AuthorID: "stranger", Visibility: note.VisibilityPublic}

	f := NewVisibilityFilter(&fakeLookups{mutingErr: errors.New("redis down")})
	if f.IsVisible(context.Background(), "viewer", n) {
		t.Error("muting failure should hide the note")
	}

	f = NewVisibilityFilter(&fakeLookups{blockersErr: errors.New("redis down")})
	if f.IsVisible(context.Background(), "viewer", n) {
		t.Error("blockers failure should hide the note")
	}

	f = NewVisibilityFilter(&fakeLookups{followingErr: errors.New("redis down")})
	followers := &note.Note{AuthorID: "stranger", Visibility: note.VisibilityFollowers}
	if f.IsVisible(context.Background(), "viewer", followers) {
		t.Error("following failure should hide a followers note")
	}
}
