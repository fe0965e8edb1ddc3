package chat

import (
	"strings"
	"sync"

	"github.com/rshanygen/anygen/pkg/sse"
)

// Transcript accumulates the reply of a streamed run.
type Transcript struct {
	mu       sync.Mutex
	content  strings.Builder
	thinking string
	chunks   int
}

// Handlers returns handlers that record into t before calling next.
func (t *Transcript) Handlers(next sse.Handlers) sse.Handlers {
	return sse.Handlers{
		OnThinking: func(s string) {
			t.mu.Lock()
			t.thinking = s
			t.mu.Unlock()
			if next.OnThinking != nil {
				next.OnThinking(s)
			}
		},
		OnChunk: func(s string) {
			t.mu.Lock()
			t.content.WriteString(s)
			t.chunks++
			t.mu.Unlock()
			if next.OnChunk != nil {
				next.OnChunk(s)
			}
		},
		OnDone:  next.OnDone,
		OnError: next.OnError,
	}
}

// Content returns the chunks received so far, concatenated in arrival order.
func (t *Transcript) Content() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content.String()
}

// Thinking returns the latest status label.
func (t *Transcript) Thinking() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.thinking
}

// Chunks returns how many chunk events were recorded.
func (t *Transcript) Chunks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chunks
}
