// Package neynar assembles complete feeds and conversations from the paginated
// feed API, cache first.
package neynar

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/cache"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/internal/paginate"
	"github.com/castarchive/castarchive/internal/retry"
	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// ErrNoResponse is returned when the first page of a feed or conversation cannot be fetched
var ErrNoResponse = paginate.ErrNoResponse

// Service serves complete, unpaginated feeds and conversations
type Service struct {
	client     *Client
	cache      cache.Store
	policy     retry.Policy
	maxItems   int
	replyDepth int
	logger     *zap.Logger
}

// NewService wires the client to the response cache
func NewService(client *Client, store cache.Store, policy retry.Policy, cfg *config.NeynarConfig, logger *zap.Logger) *Service {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 10000
	}
	replyDepth := cfg.ReplyDepth
	if replyDepth <= 0 {
		replyDepth = 5
	}
	if logger == nil {
		logger = logging.WithComponent("neynar")
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("Retrying feed API request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
	}
	return &Service{
		client:     client,
		cache:      store,
		policy:     policy,
		maxItems:   maxItems,
		replyDepth: replyDepth,
		logger:     logger,
	}
}

// Feed returns every top-level cast of fid
func (s *Service) Feed(ctx context.Context, fid uint64) (*models.FeedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "neynar.feed")
	defer span.End()

	feed, _, err := cache.GetOrFetch(ctx, s.cache, cache.BucketCasts, strconv.FormatUint(fid, 10), s.logger,
		func(ctx context.Context) (*models.FeedResponse, error) {
			return s.paginateFeed(ctx, "user_casts", func(ctx context.Context, cursor string) (*models.FeedResponse, error) {
				return s.client.UserCasts(ctx, fid, cursor)
			})
		})
	if err != nil {
		return nil, fmt.Errorf("feed for fid %d: %w", fid, err)
	}
	return feed, nil
}

// Replies returns every reply cast of fid
func (s *Service) Replies(ctx context.Context, fid uint64) (*models.FeedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "neynar.replies")
	defer span.End()

	feed, _, err := cache.GetOrFetch(ctx, s.cache, cache.BucketReplies, strconv.FormatUint(fid, 10), s.logger,
		func(ctx context.Context) (*models.FeedResponse, error) {
			return s.paginateFeed(ctx, "user_replies", func(ctx context.Context, cursor string) (*models.FeedResponse, error) {
				return s.client.UserReplies(ctx, fid, cursor)
			})
		})
	if err != nil {
		return nil, fmt.Errorf("replies for fid %d: %w", fid, err)
	}
	return feed, nil
}

// Conversation returns the conversation rooted at hash with all pages merged
func (s *Service) Conversation(ctx context.Context, hash string) (*models.Conversation, error) {
	ctx, span := telemetry.StartSpan(ctx, "neynar.conversation")
	defer span.End()

	conv, _, err := cache.GetOrFetch(ctx, s.cache, cache.BucketConversations, hash, s.logger,
		func(ctx context.Context) (*models.Conversation, error) {
			s.logger.Debug("Fetching conversation", zap.String("hash", hash))
			return s.paginateConversation(ctx, hash)
		})
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", hash, err)
	}
	return conv, nil
}

// CastsByHash fetches up to MaxBulkCasts casts in a single call, without retry
func (s *Service) CastsByHash(ctx context.Context, hashes []string) ([]models.Cast, error) {
	ctx, span := telemetry.StartSpan(ctx, "neynar.casts_by_hash")
	defer span.End()
	return s.client.CastsByHash(ctx, hashes)
}

// paginateFeed collects feed pages until the cursor runs out, a page comes back
// short, or maxItems is reached
func (s *Service) paginateFeed(ctx context.Context, name string, fetch func(context.Context, string) (*models.FeedResponse, error)) (*models.FeedResponse, error) {
	pageSize := s.client.PageSize()

	res, err := paginate.Run(ctx, s.policy, s.logger, paginate.Source[*models.FeedResponse]{
		Name:  name,
		Fetch: fetch,
		Merge: func(acc, page *models.FeedResponse) *models.FeedResponse {
			acc.Casts = append(acc.Casts, page.Casts...)
			return acc
		},
		Next: func(page *models.FeedResponse) (string, bool) {
			cursor := page.Next.CursorValue()
			return cursor, cursor != "" && len(page.Casts) >= pageSize
		},
		Size:  func(acc *models.FeedResponse) int { return len(acc.Casts) },
		Limit: s.maxItems,
	})
	if err != nil {
		return nil, err
	}

	feed := res.Value
	feed.Next = nil
	s.logger.Info("Assembled feed",
		zap.String("source", name),
		zap.Int("pages", res.Pages),
		zap.Int("casts", len(feed.Casts)),
		zap.Bool("complete", res.Complete()))
	return feed, nil
}

// paginateConversation merges ancestors and direct replies across pages into the
// first page. It stops on a missing cursor or a short page of direct replies.
func (s *Service) paginateConversation(ctx context.Context, hash string) (*models.Conversation, error) {
	pageSize := s.client.PageSize()

	res, err := paginate.Run(ctx, s.policy, s.logger, paginate.Source[*models.Conversation]{
		Name: "conversation",
		Fetch: func(ctx context.Context, cursor string) (*models.Conversation, error) {
			return s.client.ConversationPage(ctx, hash, s.replyDepth, cursor)
		},
		Merge: func(acc, page *models.Conversation) *models.Conversation {
			root := &acc.Conversation.Cast
			root.DirectReplies = append(root.DirectReplies, page.Conversation.Cast.DirectReplies...)
			acc.Conversation.ChronologicalParentCasts = append(acc.Conversation.ChronologicalParentCasts,
				page.Conversation.ChronologicalParentCasts...)
			return acc
		},
		Next: func(page *models.Conversation) (string, bool) {
			cursor := page.Next.CursorValue()
			return cursor, cursor != "" && len(page.Conversation.Cast.DirectReplies) >= pageSize
		},
	})
	if err != nil {
		return nil, err
	}

	conv := res.Value
	conv.Next = nil
	s.logger.Debug("Assembled conversation",
		zap.String("hash", hash),
		zap.Int("pages", res.Pages),
		zap.Int("direct_replies", len(conv.Conversation.Cast.DirectReplies)),
		zap.Int("parents", len(conv.Conversation.ChronologicalParentCasts)),
		zap.Bool("complete", res.Complete()))
	return conv, nil
}
