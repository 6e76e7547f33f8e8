// Package syncclient talks to a remote duet server: Pull fetches its
// markdown export and Push sends tasks to its import endpoint.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/mesh-intelligence/duet/internal/logging"
	"github.com/mesh-intelligence/duet/internal/tracker"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxElapsed = 30 * time.Second
	maxErrorBody      = 4 << 10
)

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client is a duet sync client.
type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	maxElapsed time.Duration
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxElapsed bounds the total time spent retrying one call.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the server at baseURL. An empty token sends no
// Authorization header.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote url is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("remote url %q must start with http:// or https://", baseURL)
	}
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		http:       &http.Client{Timeout: defaultTimeout},
		maxElapsed: defaultMaxElapsed,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Pull fetches the remote export. Network failures and 5xx replies are
// retried with exponential backoff; 4xx replies are not.
func (c *Client) Pull(ctx context.Context) (tracker.Export, error) {
	var exp tracker.Export
	err := c.retry(ctx, "pull", retryTransient, func() error {
		return c.do(ctx, http.MethodGet, "/export", nil, &exp)
	})
	return exp, err
}

// Push sends entries to the remote import endpoint. An import is not
// idempotent, so only failures to connect are retried.
func (c *Client) Push(ctx context.Context, entries []tracker.ImportEntry) (tracker.ImportResult, error) {
	if entries == nil {
		entries = []tracker.ImportEntry{}
	}
	body, err := json.Marshal(map[string]any{"tasks": entries})
	if err != nil {
		return tracker.ImportResult{}, fmt.Errorf("encoding import: %w", err)
	}

	var res tracker.ImportResult
	err = c.retry(ctx, "push", retryDial, func() error {
		return c.do(ctx, http.MethodPost, "/import", body, &res)
	})
	return res, err
}

// Health checks that the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	var reply struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &reply); err != nil {
		return err
	}
	if reply.Status != "ok" {
		return fmt.Errorf("server health is %q", reply.Status)
	}
	return nil
}

func (c *Client) retry(ctx context.Context, op string, retryable func(error) bool, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("sync request failed, retrying", "op", op, "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(bo, ctx))
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s reply: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a reply, falling back to the
// raw text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var reply struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &reply) == nil && reply.Error != "" {
		return reply.Error
	}
	return strings.TrimSpace(string(raw))
}

// retryTransient retries network errors and 5xx replies.
func retryTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne) || retryDial(err)
}

// retryDial retries only when no connection was made.
func retryDial(err error) bool {
	var oe *net.OpError
	return errors.As(err, &oe) && oe.Op == "dial"
}
