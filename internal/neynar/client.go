package neynar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/httpclient"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/logging"
)

// Endpoint paths, relative to the v2 base url
const (
	pathUserCasts    = "/farcaster/feed/user/casts/"
	pathUserReplies  = "/farcaster/feed/user/replies_and_recasts/"
	pathConversation = "/farcaster/cast/conversation/"
	pathCasts        = "/farcaster/casts/"
)

// MaxBulkCasts is the most hashes the bulk casts endpoint accepts per call
const MaxBulkCasts = 25

// Client issues single-page requests against the feed API
type Client struct {
	http     *httpclient.Client
	pageSize int
	logger   *zap.Logger
}

// NewClient creates a feed API client presenting the configured API key
func NewClient(cfg *config.NeynarConfig, opts ...httpclient.Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &config.MissingError{Key: "neynar_api_key"}
	}
	logger := logging.WithComponent("neynar")

	base := []httpclient.Option{
		httpclient.WithHeader("x-api-key", cfg.APIKey),
		httpclient.WithRateLimit(cfg.RateLimit),
		httpclient.WithLogger(logger),
	}
	if cfg.UserAgent != "" {
		base = append(base, httpclient.WithHeader("User-Agent", cfg.UserAgent))
	}

	hc, err := httpclient.New("neynar", cfg.URL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return &Client{http: hc, pageSize: pageSize, logger: logger}, nil
}

// PageSize is the limit sent with every paginated request
func (c *Client) PageSize() int {
	return c.pageSize
}

func (c *Client) pageQuery(cursor string) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return q
}

// UserCasts fetches one page of a user's top-level casts
func (c *Client) UserCasts(ctx context.Context, fid uint64, cursor string) (*models.FeedResponse, error) {
	q := c.pageQuery(cursor)
	q.Set("fid", strconv.FormatUint(fid, 10))
	q.Set("include_replies", "false")

	var res models.FeedResponse
	if err := c.http.Get(ctx, pathUserCasts, q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UserReplies fetches one page of a user's replies
func (c *Client) UserReplies(ctx context.Context, fid uint64, cursor string) (*models.FeedResponse, error) {
	q := c.pageQuery(cursor)
	q.Set("fid", strconv.FormatUint(fid, 10))
	q.Set("filter", "replies")

	var res models.FeedResponse
	if err := c.http.Get(ctx, pathUserReplies, q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ConversationPage fetches one page of the conversation rooted at hash
func (c *Client) ConversationPage(ctx context.Context, hash string, replyDepth int, cursor string) (*models.Conversation, error) {
	q := c.pageQuery(cursor)
	q.Set("identifier", hash)
	q.Set("type", "hash")
	q.Set("reply_depth", strconv.Itoa(replyDepth))
	q.Set("include_chronological_parent_casts", "true")

	var res models.Conversation
	if err := c.http.Get(ctx, pathConversation, q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CastsByHash fetches up to MaxBulkCasts casts in one call
func (c *Client) CastsByHash(ctx context.Context, hashes []string) ([]models.Cast, error) {
	if len(hashes) == 0 || len(hashes) > MaxBulkCasts {
		return nil, fmt.Errorf("bulk casts takes 1 to %d hashes, got %d", MaxBulkCasts, len(hashes))
	}
	q := url.Values{}
	q.Set("casts", strings.Join(hashes, ","))

	var res models.CastsResponse
	if err := c.http.Get(ctx, pathCasts, q, &res); err != nil {
		return nil, err
	}
	return res.Result.Casts, nil
}
