package sse

import (
	"fmt"
	"strings"
)

// NetworkFallbackMessage is reported when a read failure carries no message.
const NetworkFallbackMessage = "network connection failed"

// TransportError is a non-successful HTTP status returned before any frame
// was streamed.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, body)
}

// ProtocolError is a "data: " line whose payload is not valid JSON.
// It is never fatal: the decoder logs it and moves on to the next line.
type ProtocolError struct {
	Payload string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed stream frame: %q", e.Payload)
}

// StreamError is an error event reported by the backend mid-stream.
// Error returns the backend supplied message verbatim.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	if e.Message == "" {
		return "stream error"
	}
	return e.Message
}

// NetworkError is a failure of the underlying read.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return NetworkFallbackMessage
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
