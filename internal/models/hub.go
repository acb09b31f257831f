package models

// Message is a hub message as served by the Snapchain HTTP API
type Message struct {
	Hash string       `json:"hash"`
	Data *MessageData `json:"data,omitempty"`
}

// MessageData is the signed body of a hub message
type MessageData struct {
	Type        string       `json:"type"`
	FID         uint64       `json:"fid"`
	Timestamp   int64        `json:"timestamp"`
	CastAddBody *CastAddBody `json:"castAddBody,omitempty"`
}

// CastAddBody is the payload of a MESSAGE_TYPE_CAST_ADD message
type CastAddBody struct {
	Text         string     `json:"text"`
	ParentCastID *HubCastID `json:"parentCastId,omitempty"`
}

// HubCastID references a cast by author and hash on the hub
type HubCastID struct {
	FID  uint64 `json:"fid"`
	Hash string `json:"hash"`
}

// MessagesPage is one page of a hub listing
type MessagesPage struct {
	Messages      []Message `json:"messages"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// Node is one message in the reply graph
type Node struct {
	FID  uint64 `json:"fid"`
	Hash string `json:"hash"`
}

// IsCastAdd reports whether the message adds a cast
func (m *Message) IsCastAdd() bool {
	return m.Data != nil && m.Data.CastAddBody != nil
}
