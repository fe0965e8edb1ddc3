// Package session keeps the conversation correlation id that travels in the
// X-Session-ID header between chat turns.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/rshanygen/anygen/pkg/prefs"
)

// Header carries the session id on requests and responses.
const Header = "X-Session-ID"

// Store holds the current session id. When backed by a prefs.Storage the id
// survives between CLI invocations.
//
// Concurrent turns in one process race on the id: the last response to be
// observed wins.
type Store struct {
	mu    sync.Mutex
	id    string
	prefs *prefs.Storage
}

// NewStore creates a Store. p may be nil for a purely in-memory store.
func NewStore(p *prefs.Storage) *Store {
	return &Store{prefs: p}
}

// Load reads the persisted id, if any, into memory.
func (s *Store) Load(ctx context.Context) error {
	if s.prefs == nil {
		return nil
	}

	var id string
	found, err := s.prefs.Get(ctx, prefs.KeySessionID, &id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.id = id
	}
	return nil
}

// Get returns the current session id, or "" when none is set.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Set replaces the current session id. An empty id clears it.
func (s *Store) Set(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.Clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = id
	if s.prefs == nil {
		return nil
	}
	return s.prefs.Set(ctx, prefs.KeySessionID, id)
}

// Clear forgets the current session so the next turn starts a new one.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = ""
	if s.prefs == nil {
		return nil
	}
	return s.prefs.Remove(ctx, prefs.KeySessionID)
}

// Observe records the session id carried by a response header. It returns
// the observed id, or "" when the header is absent and nothing changed.
func (s *Store) Observe(ctx context.Context, h http.Header) (string, error) {
	id := strings.TrimSpace(h.Get(Header))
	if id == "" {
		return "", nil
	}
	return id, s.Set(ctx, id)
}
