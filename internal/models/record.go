package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserRecord is a persisted author
type UserRecord struct {
	FID         uint64 `gorm:"primaryKey;autoIncrement:false;column:fid" json:"fid"`
	Username    string `gorm:"type:varchar(64);column:username" json:"username"`
	DisplayName string `gorm:"type:varchar(128);column:display_name" json:"display_name"`
	Avatar      string `gorm:"type:text;column:avatar" json:"avatar"`
	Bio         string `gorm:"type:text;column:bio" json:"bio"`

	// Placeholder marks a synthesized record for an author that was never archived
	Placeholder bool `gorm:"-" json:"placeholder,omitempty"`
}

// TableName specifies the table name for UserRecord
func (UserRecord) TableName() string {
	return "users"
}

// NewUserRecord normalizes a cast author
func NewUserRecord(u User) *UserRecord {
	return &UserRecord{
		FID:         u.FID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.PfpURL,
		Bio:         u.Profile.Bio.Text,
	}
}

// CastRecord is a persisted cast, keyed by its content hash
type CastRecord struct {
	Hash       string    `gorm:"primaryKey;type:varchar(66);column:hash" json:"hash"`
	FID        uint64    `gorm:"not null;index:casts_fid_idx;column:fid" json:"fid"`
	Data       string    `gorm:"type:text;not null;column:data" json:"-"`
	ParentFID  *uint64   `gorm:"index:casts_parent_idx,priority:2;column:parent_fid" json:"parent_fid,omitempty"`
	ParentHash *string   `gorm:"type:varchar(66);index:casts_parent_idx,priority:1;column:parent_hash" json:"parent_hash,omitempty"`
	ThreadHash *string   `gorm:"type:varchar(66);column:thread_hash" json:"thread_hash,omitempty"`
	Timestamp  time.Time `gorm:"index:casts_timestamp_idx;column:timestamp" json:"timestamp"`
}

// TableName specifies the table name for CastRecord
func (CastRecord) TableName() string {
	return "casts"
}

// NewCastRecord flattens a cast into its row. Data holds the full JSON payload.
func NewCastRecord(c *Cast) (*CastRecord, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cast %s: %w", c.Hash, err)
	}
	ts, err := c.Time()
	if err != nil {
		return nil, err
	}

	rec := &CastRecord{
		Hash:       c.Hash,
		FID:        c.Author.FID,
		Data:       string(data),
		ThreadHash: c.ThreadHash,
		Timestamp:  ts.UTC(),
	}
	if c.ParentHash != nil && *c.ParentHash != "" {
		rec.ParentHash = c.ParentHash
		if fid := c.ParentFID(); fid != 0 {
			rec.ParentFID = &fid
		}
	}
	return rec, nil
}

// Cast decodes the stored payload
func (r *CastRecord) Cast() (*Cast, error) {
	var c Cast
	if err := json.Unmarshal([]byte(r.Data), &c); err != nil {
		return nil, fmt.Errorf("corrupt cast payload %s: %w", r.Hash, err)
	}
	return &c, nil
}

// IsReply reports whether the row answers another cast
func (r *CastRecord) IsReply() bool {
	return r.ParentHash != nil && *r.ParentHash != ""
}
