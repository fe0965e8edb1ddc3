// Package worker records proxied chat turns off the request path: the
// session id announced by the gateway is persisted to the session store and
// each turn is logged once its stream has finished.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rshanygen/anygen/pkg/logger"
	"github.com/rshanygen/anygen/pkg/session"
)

var (
	// A single worker keeps session updates in arrival order, so the most
	// recently finished turn wins.
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 256
)

// Job describes one finished proxied exchange.
type Job struct {
	// SessionID is the X-Session-ID response header, possibly empty.
	SessionID string

	Method   string
	Path     string
	Status   int
	Duration time.Duration

	// Streamed is true for event-stream responses; the counters below are
	// only meaningful then.
	Streamed bool
	Chunks   int
	Thinking int
	Err      error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Sessions receives observed session ids. Nil disables persistence.
	Sessions *session.Store

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "path", job.Path, "session_id", job.SessionID)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "path", job.Path, "session_id", job.SessionID)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	attrs := []any{
		"method", job.Method,
		"path", job.Path,
		"status", job.Status,
		"duration", job.Duration,
	}
	if job.Streamed {
		attrs = append(attrs, "chunks", job.Chunks, "thinking", job.Thinking)
	}
	if job.SessionID != "" {
		attrs = append(attrs, "session_id", job.SessionID)
	}

	if job.Err != nil {
		p.logger.Warn("proxied request failed", append(attrs, "error", job.Err)...)
	} else {
		p.logger.Info("proxied request", attrs...)
	}

	if job.SessionID == "" || p.config.Sessions == nil {
		return
	}

	if err := p.config.Sessions.Set(context.Background(), job.SessionID); err != nil {
		p.logger.Error("persisting session id failed", "session_id", job.SessionID, "error", err)
	}
}
