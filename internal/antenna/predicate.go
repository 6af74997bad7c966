package antenna

import (
	"context"
	"strings"

	"github.com/hotomoe/io/internal/note"
)

// Evaluator decides whether a note satisfies an antenna. It is pure apart
// from the membership lookups the source and visibility clauses delegate to.
type Evaluator struct {
	visibility *VisibilityFilter
	lookups    Lookups
	// homeRequiresFollow additionally constrains source=home to followed
	// authors. Off by default; see Config.HomeRequiresFollow.
	homeRequiresFollow bool
}

// NewEvaluator creates an Evaluator over the given lookups.
func NewEvaluator(lookups Lookups, homeRequiresFollow bool) *Evaluator {
	return &Evaluator{
		visibility:         NewVisibilityFilter(lookups),
		lookups:            lookups,
		homeRequiresFollow: homeRequiresFollow,
	}
}

// Matches reports whether the note hits the antenna. Clauses short-circuit
// on the first failure, cheap checks first. Lookup failures and missing
// required references (a list source without a list id) yield false, never
// an error.
func (e *Evaluator) Matches(ctx context.Context, a *Antenna, n *note.Note, author *note.AuthorSummary) bool {
	if !e.visibility.IsVisible(ctx, a.OwnerID, n) {
		return false
	}
	if a.ExcludeBots && author.IsBot {
		return false
	}
	if a.LocalOnly && author.Host != "" {
		return false
	}
	if !a.WithReplies && n.ReplyID != "" {
		return false
	}

	switch a.Source {
	case SourceHome:
		if e.homeRequiresFollow {
			following, err := e.lookups.Following(ctx, a.OwnerID)
			if err != nil || !following.Has(n.AuthorID) {
				return false
			}
		}
	case SourceList:
		if a.ListID == "" {
			return false
		}
		members, err := e.lookups.ListMembers(ctx, a.ListID)
		if err != nil || !members.Has(n.AuthorID) {
			return false
		}
	case SourceUsers:
		if !a.HasAcct(FullAcct(author.Username, author.Host)) {
			return false
		}
	case SourceUsersBlacklist:
		if a.HasAcct(FullAcct(author.Username, author.Host)) {
			return false
		}
	default:
		return false
	}

	if len(a.Keywords) > 0 {
		text, ok := searchableText(n)
		if !ok {
			return false
		}
		if !anyGroupMatches(a.Keywords, text, a.CaseSensitive) {
			return false
		}
	}
	if len(a.ExcludeKeywords) > 0 {
		text, ok := searchableText(n)
		if !ok {
			return false
		}
		if anyGroupMatches(a.ExcludeKeywords, text, a.CaseSensitive) {
			return false
		}
	}

	if a.WithFile && len(n.FileIDs) == 0 {
		return false
	}
	return true
}

// searchableText builds the text keyword clauses run against: text and
// content warning joined by a newline. ok is false when both are absent.
func searchableText(n *note.Note) (text string, ok bool) {
	if n.Text == nil && n.CW == nil {
		return "", false
	}
	var body, cw string
	if n.Text != nil {
		body = *n.Text
	}
	if n.CW != nil {
		cw = *n.CW
	}
	return body + "\n" + cw, true
}

// anyGroupMatches reports whether at least one group has all of its keywords
// present in text as substrings. Groups are assumed normalized.
func anyGroupMatches(groups [][]string, text string, caseSensitive bool) bool {
	folded := text
	if !caseSensitive {
		folded = strings.ToLower(text)
	}
	for _, group := range groups {
		all := true
		for _, kw := range group {
			if !caseSensitive {
				kw = strings.ToLower(kw)
			}
			if !strings.Contains(folded, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
