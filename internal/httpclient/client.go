package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

const maxErrorBody = 4 << 10

// Client issues JSON GET requests against a single base endpoint
type Client struct {
	name    string
	baseURL *url.URL
	headers http.Header
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHeader adds a static header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps the request rate; perSecond <= 0 leaves it unlimited
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTransport wraps the underlying transport, e.g. with a payment-signing middleware
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http.Transport = wrap(base)
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for baseURL. name labels logs, spans and metrics.
func New(name, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base url is required", name)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base url: %w", name, err)
	}

	c := &Client{
		name:    name,
		baseURL: u,
		headers: http.Header{"Accept": []string{"application/json"}},
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.WithComponent(name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get requests path with query and decodes the JSON body into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, c.name+".get")
	defer span.End()

	endpoint := c.resolve(path, query)
	span.SetAttributes(attribute.String("http.url", endpoint))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.Add(ctx, telemetry.HTTPRequests, 1,
			attribute.String("client", c.name), attribute.String("outcome", "transport_error"))
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	telemetry.Add(ctx, telemetry.HTTPRequests, 1,
		attribute.String("client", c.name), attribute.Int("status", resp.StatusCode))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.Debug("GET",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			Method: http.MethodGet,
			URL:    endpoint,
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   string(body),
		}
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
