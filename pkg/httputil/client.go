// Package httputil wraps net/http with the retry and JSON helpers shared by
// every remote lyrics source.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultBackoff    = 300 * time.Millisecond
	DefaultUserAgent  = "lyrics-engine/1.0"
)

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client HTTP客户端，带重试
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	userAgent  string
	logger     zerolog.Logger
}

// Option 配置 Client
type Option func(*Client)

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the base delay; attempt n waits n times this long.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithUserAgent 设置 User-Agent
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient 创建新的HTTP客户端，name 用于日志
func NewClient(name string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		userAgent:  DefaultUserAgent,
		logger:     log.With().Str("component", "http").Str("client", name).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoWithRetry sends req, retrying transport errors and 5xx responses with
// a linear backoff until maxRetries is spent or the request context ends.
// Any response below 500 is returned to the caller as is.
func (c *Client) DoWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug().
				Str("url", req.URL.Redacted()).
				Int("attempt", attempt).
				Int("max_retries", c.maxRetries).
				Msg("Retrying request")

			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", err)
			}
			c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned server error")
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// GetJSON issues a GET and decodes a 200 response into v. Other statuses
// come back as *StatusError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	resp, err := c.DoWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
