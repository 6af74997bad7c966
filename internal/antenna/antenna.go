package antenna

import (
	"strings"
	"time"
)

// Source is an antenna's primary scoping rule.
type Source string

const (
	// SourceHome scopes to the owner's home timeline. It applies no
	// structural constraint at this layer unless home-follow scoping is
	// enabled on the evaluator.
	SourceHome Source = "home"
	// SourceList scopes to members of a user list.
	SourceList Source = "list"
	// SourceUsers scopes to an explicit set of account handles.
	SourceUsers Source = "users"
	// SourceUsersBlacklist inverts SourceUsers: everyone except the set.
	SourceUsersBlacklist Source = "users_blacklist"
)

// Antenna is a saved filter producing a personal feed of matching notes.
// Keyword groups are OR-of-ANDs: a note matches when at least one group has
// all of its keywords present.
type Antenna struct {
	ID       string `json:"id"`
	OwnerID  string `json:"ownerId"`
	IsActive bool   `json:"isActive"`

	Source Source `json:"source"`
	// ListID identifies the user list for SourceList. Absent means the
	// antenna never matches.
	ListID string `json:"listId,omitempty"`
	// Users holds account handles ("alice", "alice@remote.example") for the
	// users / users_blacklist sources.
	Users []string `json:"users,omitempty"`

	Keywords        [][]string `json:"keywordGroups"`
	ExcludeKeywords [][]string `json:"excludeKeywordGroups"`
	CaseSensitive   bool       `json:"caseSensitive"`

	WithReplies bool `json:"withReplies"`
	WithFile    bool `json:"withFile"`
	LocalOnly   bool `json:"localOnly"`
	ExcludeBots bool `json:"excludeBots"`

	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`

	// accts is the normalized handle set derived from Users, built by
	// Normalize. Matching reads it directly and never re-normalizes.
	accts map[string]struct{}
}

// Normalize cleans keyword groups (empty keywords stripped, empty groups
// dropped) and precomputes the normalized handle set. It must be called once
// at ingestion, before the antenna is handed to the evaluator.
func (a *Antenna) Normalize() {
	a.Keywords = normalizeGroups(a.Keywords)
	a.ExcludeKeywords = normalizeGroups(a.ExcludeKeywords)
	a.accts = make(map[string]struct{}, len(a.Users))
	for _, u := range a.Users {
		username, host := ParseAcct(u)
		a.accts[FullAcct(username, host)] = struct{}{}
	}
}

// HasAcct reports whether the normalized handle set contains acct.
func (a *Antenna) HasAcct(acct string) bool {
	_, ok := a.accts[acct]
	return ok
}

func normalizeGroups(groups [][]string) [][]string {
	out := make([][]string, 0, len(groups))
	for _, group := range groups {
		kept := make([]string, 0, len(group))
		for _, kw := range group {
			if kw != "" {
				kept = append(kept, kw)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

// ParseAcct splits an account handle into username and host. A leading "@"
// is tolerated; a missing host means a local account.
func ParseAcct(acct string) (username, host string) {
	acct = strings.TrimPrefix(acct, "@")
	if i := strings.IndexByte(acct, '@'); i >= 0 {
		return acct[:i], acct[i+1:]
	}
	return acct, ""
}

// FullAcct returns the case-folded fully qualified handle: "username" for
// local accounts, "username@host" otherwise.
func FullAcct(username, host string) string {
	if host == "" {
		return strings.ToLower(username)
	}
	return strings.ToLower(username) + "@" + strings.ToLower(host)
}
