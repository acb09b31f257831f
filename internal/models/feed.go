package models

// Next carries the continuation cursor of a paginated response
type Next struct {
	Cursor *string `json:"cursor"`
}

// CursorValue returns the cursor, or "" when the response is the last page
func (n *Next) CursorValue() string {
	if n == nil || n.Cursor == nil {
		return ""
	}
	return *n.Cursor
}

// FeedResponse is one page (or, once assembled, the whole) of a user feed
type FeedResponse struct {
	Casts []Cast `json:"casts"`
	Next  *Next  `json:"next"`
}

// Conversation is a thread root with its ancestors and direct replies
type Conversation struct {
	Conversation ConversationBody `json:"conversation"`
	Next         *Next            `json:"next,omitempty"`
}

// ConversationBody holds the root cast (with direct_replies) and its ancestors, oldest first
type ConversationBody struct {
	Cast                     Cast   `json:"cast"`
	ChronologicalParentCasts []Cast `json:"chronological_parent_casts,omitempty"`
}

// CastsResponse is the bulk casts-by-hash response
type CastsResponse struct {
	Result struct {
		Casts []Cast `json:"casts"`
	} `json:"result"`
}
