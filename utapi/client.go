// Package utapi is a server-side client of the UploadThing API: batch file
// uploads with optional completion polling, plus the file management calls.
package utapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bitrise-io/go-utapi/config"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	apiKeyHeader  = "x-uploadthing-api-key"
	versionHeader = "x-uploadthing-version"
)

// Client talks to the UploadThing API. It is safe for concurrent use, its
// configuration is never modified after NewClient returns.
type Client struct {
	config     config.Config
	httpClient *retryablehttp.Client
	logger     log.Logger
	tracker    analytics.Tracker
	poll       pollPolicy
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *retryablehttp.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTracker enables analytics events for upload batches.
func WithTracker(tracker analytics.Tracker) Option {
	return func(c *Client) {
		c.tracker = tracker
	}
}

// NewClient ...
func NewClient(cfg config.Config, logger log.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config:     cfg,
		httpClient: NewHTTPClient(logger),
		logger:     logger,
		poll:       defaultPollPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewHTTPClient returns the client used for every request. Requests are sent
// once: failed transfers are terminal and polling has its own backoff.
// Error responses are passed through so their bodies can be reported.
func NewHTTPClient(logger log.Logger) *retryablehttp.Client {
	client := retryhttp.NewClient(logger)
	client.RetryMax = 0
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func (c *Client) endpoint(pathname string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Host, "/"), strings.TrimPrefix(pathname, "/"))
}

func (c *Client) setAPIKey(req *retryablehttp.Request) {
	req.Header.Set(apiKeyHeader, string(c.config.APIKey))
}

// post sends payload as JSON to the given API path and returns the body of a 2xx answer.
func (c *Client) post(ctx context.Context, pathname string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pathname), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set(versionHeader, c.config.Version)
	c.setAPIKey(req)

	c.logger.Debugf("POST %s", req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cancelledOr(ctx, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, unwrapError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cancelledOr(ctx, fmt.Errorf("read response: %w", err))
	}
	return respBody, nil
}

// postJSON is post with the response decoded into out (unless out is nil).
func (c *Client) postJSON(ctx context.Context, pathname string, payload, out interface{}) error {
	body, err := c.post(ctx, pathname, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", pathname, err)
	}
	return nil
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Debugf("close response body: %s", err)
	}
}

func unwrapError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("HTTP %d: read error response: %w", resp.StatusCode, err)
	}
	return &APIError{StatusCode: resp.StatusCode, Body: prettyJSON(body)}
}

func prettyJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

// cancelledOr reports ErrCancelled instead of err once ctx is done.
func cancelledOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, ctxErr)
	}
	return err
}
