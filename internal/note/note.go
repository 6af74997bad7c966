// Package note defines the note (message) model the matching engine consumes.
package note

// Visibility is a note's audience scope.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityHome      Visibility = "home"
	VisibilityFollowers Visibility = "followers"
	VisibilitySpecified Visibility = "specified"
)

// Note carries the fields relevant to antenna matching. Text and CW are
// pointers because the distinction between absent and empty matters to the
// keyword clauses.
type Note struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"userId"`
	Text     *string `json:"text"`
	CW       *string `json:"cw"`

	Visibility     Visibility `json:"visibility"`
	VisibleUserIDs []string   `json:"visibleUserIds,omitempty"`
	MentionIDs     []string   `json:"mentions,omitempty"`

	ReplyID   string `json:"replyId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`

	FileIDs []string `json:"fileIds,omitempty"`
}

// AuthorSummary is the minimal author projection passed alongside a note so
// predicate evaluation does not fetch the full author record. An empty Host
// means the author is local.
type AuthorSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Host     string `json:"host,omitempty"`
	IsBot    bool   `json:"isBot"`
}

// CreatedEvent is the wire payload announcing a newly created note on the
// intake channel.
type CreatedEvent struct {
	Note   *Note          `json:"note"`
	Author *AuthorSummary `json:"author"`
}
