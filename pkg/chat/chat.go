// Package chat sends messages to the gateway's chat endpoint and decodes the
// streamed reply.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rshanygen/anygen/pkg/logger"
	"github.com/rshanygen/anygen/pkg/session"
	"github.com/rshanygen/anygen/pkg/sse"
)

const (
	streamPath = "/api/v1/chat/stream"

	// maxErrorBody bounds how much of a failed response is kept for the
	// TransportError.
	maxErrorBody = 4 * 1024
)

// Options are the per-call parameters of a chat request. Session and
// credentials are passed explicitly on every call.
type Options struct {
	// SessionID continues an existing session. Empty starts a new one.
	SessionID string

	// Token is the bearer token. Empty sends the request unauthenticated.
	Token string

	EnableSearch bool
	KBIDs        []string
	Model        string
}

// Request is the JSON body of a chat call.
type Request struct {
	Message      string   `json:"message"`
	EnableSearch bool     `json:"enable_search"`
	KBIDs        []string `json:"kb_ids,omitempty"`
	Model        string   `json:"model,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	Stream       bool     `json:"stream"`
}

// Response is the reply of a non-streaming chat call.
type Response struct {
	SessionID    string `json:"session_id"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Client sends chat requests to a gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Streams can be long lived,
// so the client should not carry a short overall timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request and decode diagnostics.
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
		httpClient: &http.Client{},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) newRequest(ctx context.Context, message string, opts Options, stream bool) (*http.Request, error) {
	body, err := json.Marshal(Request{
		Message:      message,
		EnableSearch: opts.EnableSearch,
		KBIDs:        opts.KBIDs,
		Model:        opts.Model,
		SessionID:    opts.SessionID,
		Stream:       stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	if opts.SessionID != "" {
		req.Header.Set(session.Header, opts.SessionID)
	}

	return req, nil
}

// Send posts message without streaming and returns the complete reply.
func (c *Client) Send(ctx context.Context, message string, opts Options) (*Response, error) {
	req, err := c.newRequest(ctx, message, opts, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &sse.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, transportError(resp)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing chat response: %w", err)
	}
	if out.SessionID == "" {
		out.SessionID = resp.Header.Get(session.Header)
	}

	return &out, nil
}

func transportError(resp *http.Response) *sse.TransportError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &sse.TransportError{StatusCode: resp.StatusCode, Body: string(data)}
}

// Result is the outcome of a streamed run.
type Result struct {
	// SessionID is the X-Session-ID response header, empty when the
	// response carried none or the request never got a response.
	SessionID string

	// Err is nil on success, the error passed to OnError on failure, or
	// the context error when the run was cancelled.
	Err error

	Duration time.Duration
}

// Run is a handle to an in-flight streamed request.
type Run struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
	result    Result
}

// Cancel aborts the run. The response body is released and no further
// handler is invoked. Cancel is safe to call more than once and after the
// run has finished.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run has finished and returns its result.
func (r *Run) Wait() Result {
	<-r.done
	return r.result
}

// Stream posts message and decodes the streamed reply on its own goroutine,
// invoking h for each event. Exactly one of OnDone or OnError is invoked
// unless the run is cancelled first. When ctx ends mid-run, OnError receives
// a *sse.NetworkError wrapping ctx.Err().
func (c *Client) Stream(ctx context.Context, message string, opts Options, h sse.Handlers) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		defer cancel()
		r.result = c.stream(runCtx, &r.cancelled, message, opts, h)
	}()

	return r
}

// StreamSync is the blocking form of Stream.
func (c *Client) StreamSync(ctx context.Context, message string, opts Options, h sse.Handlers) Result {
	return c.Stream(ctx, message, opts, h).Wait()
}

func (c *Client) stream(ctx context.Context, cancelled *atomic.Bool, message string, opts Options, h sse.Handlers) Result {
	start := time.Now()
	h = guard(ctx, cancelled, h)

	finish := func(res Result) Result {
		if cancelled.Load() {
			res.Err = context.Canceled
		} else {
			res.Err = contextError(ctx, res.Err)
		}
		res.Duration = time.Since(start)
		c.logger.Debug("chat stream finished",
			"session_id", res.SessionID,
			"duration", res.Duration,
			"error", res.Err,
		)
		return res
	}

	req, err := c.newRequest(ctx, message, opts, true)
	if err != nil {
		h.Fail(err)
		return finish(Result{Err: err})
	}

	c.logger.Debug("sending chat request",
		"url", req.URL.String(),
		"session_id", opts.SessionID,
		"enable_search", opts.EnableSearch,
		"kb_ids", len(opts.KBIDs),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := &sse.NetworkError{Err: err}
		h.Fail(netErr)
		return finish(Result{Err: netErr})
	}
	defer resp.Body.Close()

	res := Result{SessionID: resp.Header.Get(session.Header)}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tErr := transportError(resp)
		h.Fail(tErr)
		res.Err = tErr
		return finish(res)
	}

	dec := sse.NewDecoder(resp.Body, sse.WithLogger(c.logger))
	res.Err = dec.Dispatch(h)

	return finish(res)
}

// guard wraps h so that nothing is delivered once the run was cancelled
// through Run.Cancel.
func guard(ctx context.Context, cancelled *atomic.Bool, h sse.Handlers) sse.Handlers {
	live := func() bool { return !cancelled.Load() }

	return sse.Handlers{
		OnThinking: func(s string) {
			if live() && h.OnThinking != nil {
				h.OnThinking(s)
			}
		},
		OnChunk: func(s string) {
			if live() && h.OnChunk != nil {
				h.OnChunk(s)
			}
		},
		OnDone: func() {
			if live() && h.OnDone != nil {
				h.OnDone()
			}
		},
		OnError: func(err error) {
			if live() && h.OnError != nil {
				h.OnError(contextError(ctx, err))
			}
		},
	}
}

// contextError rewrites a transport failure caused by the caller's context
// ending into a *sse.NetworkError wrapping ctx.Err().
func contextError(ctx context.Context, err error) error {
	var netErr *sse.NetworkError
	if ctx.Err() == nil || !errors.As(err, &netErr) || errors.Is(netErr.Err, ctx.Err()) {
		return err
	}
	return &sse.NetworkError{Err: ctx.Err()}
}
