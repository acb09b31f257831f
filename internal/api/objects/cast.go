package objects

import (
	"context"
	"fmt"
	"strings"

	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
)

// CastLoader builds API cast objects from archived rows
type CastLoader struct {
	repo *db.Repository
}

// NewCastLoader creates a new cast loader
func NewCastLoader(repo *db.Repository) *CastLoader {
	return &CastLoader{repo: repo}
}

// LoadCasts returns one object per row, in row order, with author and reply count
func (l *CastLoader) LoadCasts(ctx context.Context, rows []*models.CastRecord) ([]map[string]interface{}, error) {
	if len(rows) == 0 {
		return []map[string]interface{}{}, nil
	}

	fids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		fids = append(fids, row.FID)
	}
	authors, err := l.repo.Users().GetByFIDs(ctx, fids)
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}

	result := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		cast, err := row.Cast()
		if err != nil {
			return nil, err
		}
		replies, err := l.repo.Casts().CountReplies(ctx, row.FID, row.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to count replies: %w", err)
		}

		author, ok := authors[row.FID]
		if !ok {
			author = models.PlaceholderUser(row.FID)
		}

		obj := map[string]interface{}{
			"hash":        row.Hash,
			"fid":         row.FID,
			"author":      UserObject(author),
			"text":        cast.Text,
			"timestamp":   row.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			"reply_count": replies,
			"embeds":      embedURLs(cast.Embeds),
		}
		if row.IsReply() {
			obj["parent_hash"] = *row.ParentHash
			if row.ParentFID != nil {
				obj["parent_fid"] = *row.ParentFID
			}
		}
		if row.ThreadHash != nil {
			obj["thread_hash"] = *row.ThreadHash
		}
		if cast.Channel != nil {
			obj["channel"] = cast.Channel.ID
		}
		result = append(result, obj)
	}
	return result, nil
}

// UserObject is the API view of a user
func UserObject(u *models.UserRecord) map[string]interface{} {
	obj := map[string]interface{}{
		"fid":          u.FID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"avatar":       u.Avatar,
		"bio":          u.Bio,
	}
	if u.Placeholder {
		obj["placeholder"] = true
	}
	return obj
}

func embedURLs(embeds []models.Embed) []string {
	urls := []string{}
	for _, e := range embeds {
		switch {
		case e.URL != "":
			urls = append(urls, e.URL)
		case e.CastID != nil:
			urls = append(urls, "farcaster://casts/"+strings.TrimPrefix(e.CastID.Hash, "0x"))
		}
	}
	return urls
}
