// Package hub walks reply graphs on a Snapchain hub.
package hub

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/httpclient"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/internal/paginate"
	"github.com/castarchive/castarchive/internal/retry"
	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// endPageToken is what the hub base64-encodes into nextPageToken on the last page
const endPageToken = "[null,null]"

// Client lists cast replies from a hub
type Client struct {
	http        *httpclient.Client
	policy      retry.Policy
	pageSize    int
	maxMessages int
	logger      *zap.Logger
}

// NewClient creates a hub client
func NewClient(cfg *config.HubConfig, policy retry.Policy, opts ...httpclient.Option) (*Client, error) {
	logger := logging.WithComponent("hub")
	base := []httpclient.Option{
		httpclient.WithRateLimit(cfg.RateLimit),
		httpclient.WithLogger(logger),
	}
	hc, err := httpclient.New("hub", cfg.URL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 1000
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("Retrying hub request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
	}

	return &Client{
		http:        hc,
		policy:      policy,
		pageSize:    pageSize,
		maxMessages: maxMessages,
		logger:      logger,
	}, nil
}

// castsByParentPage fetches one page of replies to (fid, hash)
func (c *Client) castsByParentPage(ctx context.Context, fid uint64, hash, pageToken string) (*models.MessagesPage, error) {
	q := url.Values{}
	q.Set("fid", strconv.FormatUint(fid, 10))
	q.Set("hash", hash)
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("reverse", "false")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var page models.MessagesPage
	if err := c.http.Get(ctx, "/castsByParent", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CastsByParent returns the cast-add messages replying to (fid, hash), across pages.
// A page that cannot be fetched ends the listing with whatever was collected.
func (c *Client) CastsByParent(ctx context.Context, fid uint64, hash string) ([]models.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "hub.casts_by_parent")
	defer span.End()

	logger := c.logger.With(zap.Uint64("fid", fid), zap.String("hash", hash))

	res, err := paginate.Run(ctx, c.policy, logger, paginate.Source[*models.MessagesPage]{
		Name: "casts_by_parent",
		Fetch: func(ctx context.Context, token string) (*models.MessagesPage, error) {
			return c.castsByParentPage(ctx, fid, hash, token)
		},
		First: func(page *models.MessagesPage) *models.MessagesPage {
			return &models.MessagesPage{Messages: castAdds(page.Messages)}
		},
		Merge: func(acc, page *models.MessagesPage) *models.MessagesPage {
			acc.Messages = append(acc.Messages, castAdds(page.Messages)...)
			return acc
		},
		Next: func(page *models.MessagesPage) (string, bool) {
			// The hub answers with up to twice pageSize per page, so a full page is >= pageSize
			if isEndToken(page.NextPageToken) {
				return "", false
			}
			return page.NextPageToken, len(castAdds(page.Messages)) >= c.pageSize
		},
		Size:  func(acc *models.MessagesPage) int { return len(acc.Messages) },
		Limit: c.maxMessages,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("Failed to list replies", zap.Error(err))
		return nil, nil
	}
	return res.Value.Messages, nil
}

// Children returns the (fid, hash) of every direct reply to (fid, hash)
func (c *Client) Children(ctx context.Context, fid uint64, hash string) ([]models.Node, error) {
	msgs, err := c.CastsByParent(ctx, fid, hash)
	if err != nil {
		return nil, err
	}
	nodes := make([]models.Node, 0, len(msgs))
	for _, m := range msgs {
		nodes = append(nodes, models.Node{FID: m.Data.FID, Hash: m.Hash})
	}
	return nodes, nil
}

func castAdds(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsCastAdd() {
			out = append(out, m)
		}
	}
	return out
}

// tokenEncodings are tried in order; hubs emit padded and unpadded standard
// and URL-safe cursors.
var tokenEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// isEndToken reports whether token marks the last page: absent, not base64 in
// any accepted alphabet, or the null pair
func isEndToken(token string) bool {
	if token == "" {
		return true
	}
	for _, enc := range tokenEncodings {
		if decoded, err := enc.DecodeString(token); err == nil {
			return string(decoded) == endPageToken
		}
	}
	return true
}
