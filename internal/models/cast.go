package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Cast is a single Farcaster post as returned by the feed API.
// Fields the archive does not model are kept in raw so the stored payload round-trips.
type Cast struct {
	Hash         string        `json:"hash" validate:"required,hexadecimal"`
	Author       User          `json:"author"`
	Text         string        `json:"text"`
	Timestamp    string        `json:"timestamp"`
	ThreadHash   *string       `json:"thread_hash,omitempty"`
	ParentHash   *string       `json:"parent_hash,omitempty"`
	ParentURL    *string       `json:"parent_url,omitempty"`
	ParentAuthor *ParentAuthor `json:"parent_author,omitempty"`
	Channel      *Channel      `json:"channel,omitempty"`
	Embeds       []Embed       `json:"embeds,omitempty"`
	Replies      *ReplyCount   `json:"replies,omitempty"`

	// DirectReplies is only populated on the root cast of a conversation
	DirectReplies []Cast `json:"direct_replies,omitempty"`

	raw json.RawMessage
}

// ParentAuthor identifies the author of the cast being replied to
type ParentAuthor struct {
	FID uint64 `json:"fid"`
}

// Channel is the channel a cast was posted in
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// ReplyCount is the reply counter attached to a cast
type ReplyCount struct {
	Count int `json:"count"`
}

// Embed is a url or a quoted cast attached to a cast
type Embed struct {
	URL      string         `json:"url,omitempty"`
	CastID   *CastID        `json:"cast_id,omitempty"`
	Metadata *EmbedMetadata `json:"metadata,omitempty"`
}

// CastID references another cast
type CastID struct {
	FID  uint64 `json:"fid"`
	Hash string `json:"hash"`
}

// EmbedMetadata carries the content type the API resolved for an embedded url
type EmbedMetadata struct {
	ContentType string `json:"content_type,omitempty"`
}

// IsImage reports whether the embed resolved to an image
func (e Embed) IsImage() bool {
	return e.Metadata != nil && len(e.Metadata.ContentType) > 6 && e.Metadata.ContentType[:6] == "image/"
}

type castAlias Cast

// UnmarshalJSON decodes the modeled fields and remembers the full payload
func (c *Cast) UnmarshalJSON(data []byte) error {
	var alias castAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Cast(alias)
	c.raw = append(c.raw[:0], data...)
	return nil
}

// MarshalJSON writes the received payload with the modeled fields laid over it
func (c Cast) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(castAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.raw) == 0 {
		return typed, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(c.raw, &merged); err != nil {
		// Not an object; the typed view is all we can trust
		return typed, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Time parses the cast timestamp
func (c *Cast) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q on cast %s: %w", c.Timestamp, c.Hash, err)
	}
	return t, nil
}

// ParentFID returns the parent author fid, or 0 for top-level casts
func (c *Cast) ParentFID() uint64 {
	if c.ParentAuthor == nil {
		return 0
	}
	return c.ParentAuthor.FID
}

// ParentHashValue returns the parent hash, or "" for top-level casts
func (c *Cast) ParentHashValue() string {
	if c.ParentHash == nil {
		return ""
	}
	return *c.ParentHash
}

// ThreadHashValue returns the thread root hash, or ""
func (c *Cast) ThreadHashValue() string {
	if c.ThreadHash == nil {
		return ""
	}
	return *c.ThreadHash
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the fields every cast must carry before it is persisted
func (c *Cast) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid cast %q: %w", c.Hash, err)
	}
	return nil
}
