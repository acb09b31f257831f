package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// Source serves complete feeds and conversations
type Source interface {
	Feed(ctx context.Context, fid uint64) (*models.FeedResponse, error)
	Replies(ctx context.Context, fid uint64) (*models.FeedResponse, error)
	Conversation(ctx context.Context, hash string) (*models.Conversation, error)
}

// Traverser discovers every message reachable from a cast
type Traverser interface {
	Traverse(ctx context.Context, fid uint64, hash string) ([]models.Node, error)
}

// Pipeline archives an account: its feed, its replies and the threads around them
type Pipeline struct {
	source    Source
	traverser Traverser
	tagger    *Tagger
	hydrator  *Hydrator
	logger    *zap.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(source Source, traverser Traverser, tagger *Tagger, hydrator *Hydrator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = logging.WithComponent("ingest")
	}
	return &Pipeline{
		source:    source,
		traverser: traverser,
		tagger:    tagger,
		hydrator:  hydrator,
		logger:    logger,
	}
}

// Stats summarizes a run
type Stats struct {
	RunID   string `json:"run_id"`
	Casts   int    `json:"casts"`
	Replies int    `json:"replies"`
	Failed  int    `json:"failed"`
}

// Run archives fid: its feed and replies, then every thread they touch
func (p *Pipeline) Run(ctx context.Context, fid uint64) (*Stats, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.Uint64("fid", fid))

	ctx, span := telemetry.StartSpan(ctx, "ingest.run")
	defer span.End()

	feed, err := p.source.Feed(ctx, fid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed for %d: %w", fid, err)
	}
	replies, err := p.source.Replies(ctx, fid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replies for %d: %w", fid, err)
	}
	logger.Info("Fetched account history",
		zap.Int("casts", len(feed.Casts)),
		zap.Int("replies", len(replies.Casts)))

	queue := make([]models.Cast, 0, len(feed.Casts)+len(replies.Casts))
	queue = append(queue, feed.Casts...)
	queue = append(queue, replies.Casts...)

	failed, err := p.queueLoop(ctx, logger, queue)
	stats := &Stats{RunID: runID, Casts: len(feed.Casts), Replies: len(replies.Casts), Failed: failed}
	if err != nil {
		return stats, err
	}
	logger.Info("Run complete", zap.Int("failed", failed))
	return stats, nil
}

// QueueLoop archives each cast and its surroundings, one cast at a time.
// A cast that fails is logged and skipped; only cancellation stops the loop.
func (p *Pipeline) QueueLoop(ctx context.Context, casts []models.Cast) (int, error) {
	return p.queueLoop(ctx, p.logger.With(zap.String("run_id", uuid.NewString())), casts)
}

func (p *Pipeline) queueLoop(ctx context.Context, logger *zap.Logger, casts []models.Cast) (int, error) {
	failed := 0
	for i := range casts {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		c := &casts[i]
		if err := p.process(ctx, logger, c); err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			failed++
			logger.Error("Failed to archive cast", zap.String("hash", c.Hash), zap.Error(err))
		}
	}
	return failed, nil
}

func (p *Pipeline) process(ctx context.Context, logger *zap.Logger, c *models.Cast) error {
	if err := p.tagger.Tag(ctx, c); err != nil {
		return err
	}

	var tagErr error
	if thread := c.ThreadHashValue(); thread != "" {
		conv, err := p.source.Conversation(ctx, thread)
		if err != nil {
			return fmt.Errorf("thread %s: %w", thread, err)
		}
		// Casts that could not be tagged are already logged; the thread walk still runs.
		tagErr = p.tagger.TagConversation(ctx, conv)

		if parentFID, parentHash := c.ParentFID(), c.ParentHashValue(); parentFID != 0 && parentHash != "" {
			nodes, err := p.traverser.Traverse(ctx, parentFID, parentHash)
			if err != nil {
				return fmt.Errorf("traverse from %s: %w", parentHash, err)
			}
			if _, err := p.hydrator.HydrateAll(ctx, nodes); err != nil {
				return fmt.Errorf("hydrate thread of %s: %w", c.Hash, err)
			}
		} else {
			logger.Debug("No parent author or hash found for cast", zap.String("hash", c.Hash))
		}
	}

	replies, err := p.source.Conversation(ctx, c.Hash)
	if err != nil {
		return fmt.Errorf("replies to %s: %w", c.Hash, err)
	}
	return errors.Join(tagErr, p.tagger.TagConversation(ctx, replies))
}
