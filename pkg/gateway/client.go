// Package gateway is a REST client for the AnyGen gateway and the RAG
// ingest service: sessions, skills, knowledge bases, documents, user
// administration and login endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rshanygen/anygen/pkg/logger"
	"github.com/rshanygen/anygen/pkg/session"
)

const apiPrefix = "/api/v1"

// TokenSource supplies the bearer token for each request. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// Client talks to the gateway over HTTP.
type Client struct {
	baseURL    string
	ragURL     string
	httpClient *http.Client
	tokens     TokenSource
	sessionID  func() string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token source.
func WithToken(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithSessionID sets a function returning the X-Session-ID to attach.
func WithSessionID(fn func() string) Option {
	return func(c *Client) {
		c.sessionID = fn
	}
}

// WithRAGURL sets the base URL of the RAG ingest service. Without it,
// ingest requests go to the gateway base URL (useful behind the dev proxy).
func WithRAGURL(u string) Option {
	return func(c *Client) {
		c.ragURL = strings.TrimRight(u, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid gateway URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ragURL == "" {
		c.ragURL = c.baseURL
	}

	return c, nil
}

// BaseURL returns the gateway base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds a request against base+path and attaches the bearer
// token and session id when available.
func (c *Client) newRequest(ctx context.Context, method, base, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("loading token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	if c.sessionID != nil {
		if id := c.sessionID(); id != "" {
			req.Header.Set(session.Header, id)
		}
	}

	return req, nil
}

// doJSON sends in (when non-nil) as a JSON body and decodes the response
// into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, base, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, base, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", req.URL.Path, err)
	}

	return nil
}
