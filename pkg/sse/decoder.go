package sse

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/rshanygen/anygen/pkg/logger"
)

const defaultReadSize = 4 * 1024

// Decoder reassembles newline delimited frames from a chunked source and
// decodes them into events.
//
// ┌──────────────────┐
// │ source io.Reader │ arbitrary chunks
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌──────────────────┐
// │   decode buffer  │──▶│ tee io.Writer    │ (optional, verbatim bytes)
// └──────────────────┘   └──────────────────┘
// │ complete lines
// ▼
// ┌──────────────────┐
// │  Event / error   │
// └──────────────────┘
//
// A Decoder serves exactly one decode run and is not safe for concurrent use.
// Once a terminal event (done, error, read failure or end of stream) has been
// produced, the Decoder stops reading from the source and every subsequent
// call to Next returns nil, nil.
type Decoder struct {
	src    io.Reader
	tee    io.Writer
	logger *slog.Logger

	chunk []byte

	// buf holds the trailing partial line of everything read so far. After a
	// chunk is processed it never contains a newline.
	buf []byte

	// pending holds complete lines not yet handed to the caller.
	pending []string

	readErr    error
	terminated bool
}

// Option configures a Decoder created with NewDecoder.
type Option func(*Decoder)

// WithLogger sets the diagnostic sink for skipped and unrecognized frames.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTee writes every byte read from the source, verbatim, to w.
// This lets a proxy forward the raw stream downstream while inspecting events.
func WithTee(w io.Writer) Option {
	return func(d *Decoder) {
		d.tee = w
	}
}

// WithReadSize sets the size of each read from the source.
func WithReadSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.chunk = make([]byte, n)
		}
	}
}

// NewDecoder returns a Decoder reading frames from src.
func NewDecoder(src io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		src:    src,
		logger: logger.Nop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.chunk == nil {
		d.chunk = make([]byte, defaultReadSize)
	}

	return d
}

// Next returns the next dispatchable event, blocking on the source until one
// is available.
//
// Only thinking, chunk and done events are returned. A backend error frame
// is returned as a *StreamError and a failed read as a *NetworkError; both
// end the run. The [DONE] sentinel and a done frame are returned as an
// EventDone event and end the run. When the source is exhausted without any
// terminal frame, Next returns a single EventDone with Fallback set.
//
// Next returns nil, nil once the run has ended.
func (d *Decoder) Next() (*Event, error) {
	for !d.terminated {
		if len(d.pending) > 0 {
			line := d.pending[0]
			d.pending = d.pending[1:]

			ev, err := d.processLine(line)
			if err != nil {
				d.terminate()
				return nil, err
			}
			if ev == nil {
				continue
			}
			if ev.Type == EventDone {
				d.terminate()
			}
			return ev, nil
		}

		if d.readErr != nil {
			err := d.readErr
			d.terminate()

			if errors.Is(err, io.EOF) {
				// A trailing line without a newline terminator is discarded.
				if len(d.buf) > 0 {
					d.logger.Debug("discarding unterminated stream line", "line", string(d.buf))
				}
				return &Event{Type: EventDone, Fallback: true}, nil
			}
			return nil, &NetworkError{Err: err}
		}

		d.read()
	}

	return nil, nil
}

// Dispatch drives the run to completion, invoking the matching handler for
// each event in arrival order. Exactly one of OnDone or OnError is invoked,
// last. Dispatch returns the error passed to OnError, or nil.
func (d *Decoder) Dispatch(h Handlers) error {
	h = h.withDefaults()

	for {
		ev, err := d.Next()
		if err != nil {
			h.OnError(err)
			return err
		}
		if ev == nil {
			return nil
		}

		switch ev.Type {
		case EventThinking:
			h.OnThinking(ev.Content)
		case EventChunk:
			h.OnChunk(ev.Content)
		case EventDone:
			h.OnDone()
			return nil
		}
	}
}

// All returns the run as a single-pass sequence. The final element is
// either an EventDone event or a non-nil error. The sequence cannot be
// restarted.
func (d *Decoder) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := d.Next()
			if err != nil {
				yield(Event{}, err)
				return
			}
			if ev == nil {
				return
			}
			if !yield(*ev, nil) {
				return
			}
		}
	}
}

// read performs a single read from the source, splitting newly completed
// lines into pending. Read errors, including io.EOF, are deferred until the
// lines that arrived with them have been processed.
func (d *Decoder) read() {
	n, err := d.src.Read(d.chunk)
	if n > 0 {
		data := d.chunk[:n]

		if d.tee != nil {
			if _, werr := d.tee.Write(data); werr != nil {
				d.readErr = werr
				return
			}
		}

		d.feed(data)
	}

	if err != nil {
		d.readErr = err
	}
}

// feed appends data to the decode buffer and moves every complete line into
// pending, leaving only the trailing partial line in the buffer.
func (d *Decoder) feed(data []byte) {
	d.buf = append(d.buf, data...)

	last := bytes.LastIndexByte(d.buf, '\n')
	if last < 0 {
		return
	}

	for _, line := range bytes.Split(d.buf[:last], []byte{'\n'}) {
		d.pending = append(d.pending, string(line))
	}

	rest := make([]byte, len(d.buf)-last-1)
	copy(rest, d.buf[last+1:])
	d.buf = rest
}

// processLine turns one complete line into an event. It returns nil, nil for
// lines that produce no dispatch.
func (d *Decoder) processLine(line string) (*Event, error) {
	payload, ok := ParseFrame(line)
	if !ok {
		return nil, nil
	}

	if payload == DoneSentinel {
		return &Event{Type: EventDone, Raw: payload}, nil
	}

	ev, err := ParseEvent(payload)
	if err != nil {
		d.logger.Warn("skipping malformed stream frame", "error", err, "payload", payload)
		return nil, nil
	}

	if !ev.Known() {
		d.logger.Debug("ignoring unknown stream event type", "type", string(ev.Type), "payload", payload)
		return nil, nil
	}
	if ev.Type == EventError {
		return nil, &StreamError{Message: ev.Message}
	}
	return &ev, nil
}

// terminate ends the run, dropping everything still buffered.
func (d *Decoder) terminate() {
	d.terminated = true
	d.pending = nil
	d.buf = nil
}
