// Package proxy provides the development proxy that fronts the gateway and
// the RAG service on a single origin, streaming chat replies through
// unchanged while decoding them for diagnostics.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/rshanygen/anygen/pkg/logger"
	"github.com/rshanygen/anygen/pkg/sse"
	"github.com/rshanygen/anygen/proxy/header"
	"github.com/rshanygen/anygen/proxy/worker"
)

const (
	apiPrefix = "/api/"

	// ragMountPrefix exposes the RAG service root, e.g. /rag/ -> RAG "/".
	ragMountPrefix = "/rag"
)

// ragPrefixes are the API paths served by the RAG service rather than the
// gateway.
var ragPrefixes = []string{
	"/api/v1/ingest",
	"/api/v1/documents",
	"/api/v1/search",
}

// errorResponse mirrors the gateway's error body so clients parse proxy
// failures the same way.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Proxy forwards API requests to the gateway or the RAG service.
// It is transparent: bodies and headers pass through apart from the
// credential defaults it injects, and finished exchanges are handed to its
// worker pool for recording.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
func New(config Config, log *slog.Logger) (*Proxy, error) {
	if config.GatewayURL == "" {
		return nil, errors.New("gateway URL is required")
	}
	if config.RAGURL == "" {
		return nil, errors.New("RAG URL is required")
	}
	config.GatewayURL = strings.TrimRight(config.GatewayURL, "/")
	config.RAGURL = strings.TrimRight(config.RAGURL, "/")

	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
		// uploads to the RAG service can be large documents
		BodyLimit: 64 * 1024 * 1024,
	})

	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Sessions: config.Sessions,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		logger:        log,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// chat streams stay open while the model generates
			Timeout: 5 * time.Minute,
		},
	}

	app.All(ragMountPrefix+"/*", p.handleProxy)
	app.All(apiPrefix+"*", p.handleProxy)
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Detail: "Not Found"})
	})

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"gateway", p.config.GatewayURL,
		"rag", p.config.RAGURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"gateway", p.config.GatewayURL,
		"rag", p.config.RAGURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// resolveUpstream maps a client path to the upstream base URL and the path
// to request there.
func (p *Proxy) resolveUpstream(path string) (string, string) {
	if path == ragMountPrefix || strings.HasPrefix(path, ragMountPrefix+"/") {
		rest := strings.TrimPrefix(path, ragMountPrefix)
		if rest == "" {
			rest = "/"
		}
		return p.config.RAGURL, rest
	}

	for _, prefix := range ragPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return p.config.RAGURL, path
		}
	}

	return p.config.GatewayURL, path
}

// defaults returns the stored token and session id to inject.
func (p *Proxy) defaults() (string, string) {
	var token, sessionID string
	if p.config.Tokens != nil {
		tok, err := p.config.Tokens.Token()
		if err != nil {
			p.logger.Warn("loading stored token", "error", err)
		}
		token = tok
	}
	if p.config.Sessions != nil {
		sessionID = p.config.Sessions.Get()
	}
	return token, sessionID
}

// handleProxy forwards the request upstream. Event-stream responses are
// streamed; everything else is buffered and relayed.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()

	base, path := p.resolveUpstream(c.Path())
	target := base + path
	if q := string(c.Request().URI().QueryString()); q != "" {
		target += "?" + q
	}
	method := c.Method()

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	// context.Background() rather than c.Context(): fasthttp recycles its
	// RequestCtx after the handler returns, while a streamed body is still
	// being copied by a separate goroutine.
	httpReq, err := http.NewRequestWithContext(context.Background(), method, target, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Detail: "internal error"})
	}

	requestID := p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)
	token, sessionID := p.defaults()
	p.headerHandler.InjectDefaults(httpReq, token, sessionID)

	log := p.logger.With("request_id", requestID, "method", method, "path", path)
	log.Debug("forwarding request to upstream", "url", target)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		log.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Detail: "upstream request failed"})
	}

	job := worker.Job{
		SessionID: httpResp.Header.Get(header.SessionIDHeader),
		Method:    method,
		Path:      path,
		Status:    httpResp.StatusCode,
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Status(httpResp.StatusCode)

	if strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		// io.Pipe + SetBodyStream gives per-chunk flushing to the client;
		// SetBodyStreamWriter would buffer chunks in fasthttp's internal pipe.
		pr, pw := io.Pipe()
		go p.streamToPipe(httpResp, pw, job, startTime, log)

		// unknown size (-1) selects chunked transfer encoding
		c.Context().Response.SetBodyStream(pr, -1)
		return nil
	}

	defer httpResp.Body.Close()
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		log.Error("failed to read upstream response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Detail: "failed to read upstream response"})
	}

	job.Duration = time.Since(startTime)
	p.workerPool.Enqueue(job)

	return c.Send(respBody)
}

// streamToPipe forwards an event-stream body to pw byte for byte while
// decoding it, then hands the summary to the worker pool.
func (p *Proxy) streamToPipe(httpResp *http.Response, pw *io.PipeWriter, job worker.Job, startTime time.Time, log *slog.Logger) {
	defer httpResp.Body.Close()
	defer pw.Close()

	job.Streamed = true
	dec := sse.NewDecoder(httpResp.Body, sse.WithTee(pw), sse.WithLogger(log))

	for ev, err := range dec.All() {
		if err != nil {
			job.Err = err
			break
		}
		switch ev.Type {
		case sse.EventThinking:
			job.Thinking++
			log.Debug("stream thinking", "content", ev.Content)
		case sse.EventChunk:
			job.Chunks++
		case sse.EventDone:
			log.Debug("stream done", "fallback", ev.Fallback)
		}
	}

	// The decoder stops at the first terminal frame; anything the upstream
	// sends afterwards still belongs to the client.
	var netErr *sse.NetworkError
	if !errors.As(job.Err, &netErr) {
		if _, err := io.Copy(pw, httpResp.Body); err != nil {
			log.Debug("forwarding stream tail", "error", err)
		}
	}

	job.Duration = time.Since(startTime)
	p.workerPool.Enqueue(job)
}
