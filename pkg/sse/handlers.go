package sse

// Handlers are the callbacks of a decode run. Every field is optional; nil
// handlers are no-ops. Handlers run synchronously on the read loop and
// should not block it.
type Handlers struct {
	// OnThinking receives interim status labels.
	OnThinking func(content string)

	// OnChunk receives reply fragments in arrival order.
	OnChunk func(content string)

	// OnDone is invoked once when the run completes successfully.
	OnDone func()

	// OnError is invoked once when the run fails. The error is a
	// *TransportError, *StreamError or *NetworkError.
	OnError func(err error)
}

func (h Handlers) withDefaults() Handlers {
	if h.OnThinking == nil {
		h.OnThinking = func(string) {}
	}
	if h.OnChunk == nil {
		h.OnChunk = func(string) {}
	}
	if h.OnDone == nil {
		h.OnDone = func() {}
	}
	if h.OnError == nil {
		h.OnError = func(error) {}
	}
	return h
}

// Fail reports err through OnError. Use it for failures that happen before a
// Decoder exists, such as a non-successful HTTP status.
func (h Handlers) Fail(err error) {
	h.withDefaults().OnError(err)
}
