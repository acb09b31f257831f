// Package ingest persists casts and drives an archive run.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/logging"
)

// Tagger writes casts and their authors to the domain store
type Tagger struct {
	repo   *db.Repository
	logger *zap.Logger
}

// NewTagger creates a tagger over repo
func NewTagger(repo *db.Repository, logger *zap.Logger) *Tagger {
	if logger == nil {
		logger = logging.WithComponent("tagger")
	}
	return &Tagger{repo: repo, logger: logger}
}

// Tag stores the cast and its author. Records that already exist are left as they are.
func (t *Tagger) Tag(ctx context.Context, cast *models.Cast) error {
	if err := cast.Validate(); err != nil {
		return err
	}
	rec, err := models.NewCastRecord(cast)
	if err != nil {
		return err
	}
	user := models.NewUserRecord(cast.Author)

	err = t.repo.Transaction(ctx, func(tx *db.Repository) error {
		if _, err := tx.Users().InsertIfAbsent(ctx, user); err != nil {
			return fmt.Errorf("failed to insert user %d: %w", user.FID, err)
		}
		inserted, err := tx.Casts().InsertIfAbsent(ctx, rec)
		if err != nil {
			return fmt.Errorf("failed to insert cast %s: %w", rec.Hash, err)
		}
		if inserted {
			t.logger.Debug("Tagged cast", zap.String("hash", rec.Hash), zap.Uint64("fid", rec.FID))
		}
		return nil
	})
	return err
}

// TagAll tags every cast. A cast that cannot be stored is logged and skipped;
// the failures are returned joined once every cast has been tried.
func (t *Tagger) TagAll(ctx context.Context, casts []models.Cast) error {
	var errs []error
	for i := range casts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Tag(ctx, &casts[i]); err != nil {
			t.logger.Warn("Failed to tag cast", zap.String("hash", casts[i].Hash), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TagConversation tags the root, its ancestors and its direct replies.
// Each cast is stored independently of the others.
func (t *Tagger) TagConversation(ctx context.Context, conv *models.Conversation) error {
	root := conv.Conversation.Cast
	casts := make([]models.Cast, 0, 1+len(conv.Conversation.ChronologicalParentCasts)+len(root.DirectReplies))
	casts = append(casts, root)
	casts = append(casts, conv.Conversation.ChronologicalParentCasts...)
	casts = append(casts, root.DirectReplies...)
	return t.TagAll(ctx, casts)
}
