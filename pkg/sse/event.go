// Package sse provides a minimal, purpose-built decoder for the gateway's
// chat stream. The stream is a chunked HTTP body of newline delimited
// "data: <payload>" frames, where the payload is either the [DONE] sentinel
// or a JSON object tagged by a "type" field.
//
// This package intentionally does NOT implement the full SSE event model
// (event:, id:, retry: fields and blank-line event boundaries). Every data
// line is a complete frame on its own.
//
// Server-sent events, for comparison:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
	"strings"
)

// EventType is the "type" discriminator of a decoded frame.
type EventType string

const (
	// EventThinking carries an interim status label in Content.
	EventThinking EventType = "thinking"

	// EventChunk carries an incremental fragment of the assistant reply in
	// Content. Fragments are meant to be concatenated in arrival order.
	EventChunk EventType = "chunk"

	// EventDone marks successful completion of the stream.
	EventDone EventType = "done"

	// EventError carries a backend failure description in Message.
	EventError EventType = "error"
)

const (
	// DataPrefix is the literal prefix of every frame line.
	DataPrefix = "data: "

	// DoneSentinel is the out-of-band, non-JSON completion payload.
	DoneSentinel = "[DONE]"
)

// Event is a single decoded frame.
type Event struct {
	// Type is the frame's "type" field.
	Type EventType `json:"type"`

	// Content is set for thinking and chunk events.
	Content string `json:"content,omitempty"`

	// Message is set for error events.
	Message string `json:"message,omitempty"`

	// Raw is the trimmed payload the event was decoded from.
	Raw string `json:"-"`

	// Fallback is true for the done event synthesized when the stream ends
	// without a [DONE] sentinel or a done frame.
	Fallback bool `json:"-"`
}

// Known reports whether the event type is one the decoder dispatches.
func (e Event) Known() bool {
	switch e.Type {
	case EventThinking, EventChunk, EventDone, EventError:
		return true
	default:
		return false
	}
}

// ParseFrame extracts the payload of a single stream line.
// It returns ok=false for lines without the "data: " prefix (comments,
// keep-alives, blank separators, other SSE fields).
func ParseFrame(line string) (string, bool) {
	if !strings.HasPrefix(line, DataPrefix) {
		return "", false
	}

	return strings.TrimSpace(line[len(DataPrefix):]), true
}

// wireEvent is the loose shape of a frame payload. Fields stay raw so a
// mistyped content or message never hides the type.
type wireEvent struct {
	Type    json.RawMessage `json:"type"`
	Content json.RawMessage `json:"content"`
	Message json.RawMessage `json:"message"`
}

// ParseEvent decodes a frame payload into an Event.
// Payloads that are not valid JSON return a *ProtocolError. A JSON value
// that is not an object, or whose "type" is not a string, yields an Event
// with an empty Type, which is treated as unrecognized. Non-string content
// and message values are kept as their raw JSON text.
func ParseEvent(payload string) (Event, error) {
	if !json.Valid([]byte(payload)) {
		return Event{}, &ProtocolError{Payload: payload}
	}

	ev := Event{Raw: payload}

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return ev, nil
	}

	var typ string
	if json.Unmarshal(w.Type, &typ) == nil {
		ev.Type = EventType(typ)
	}
	ev.Content = rawText(w.Content)
	ev.Message = rawText(w.Message)

	return ev, nil
}

// rawText returns a JSON string's value, "" for null or absent fields and
// the raw JSON text of anything else.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
