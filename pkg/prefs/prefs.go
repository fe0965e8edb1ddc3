// Package prefs is the client's preference store: JSON values under
// "rshanygen_"-prefixed keys on top of a plain string key/value backend,
// with recovery from entries that no longer parse.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rshanygen/anygen/pkg/logger"
)

// Prefix namespaces every key this package owns inside a shared backend.
const Prefix = "rshanygen_"

// Known preference keys.
const (
	KeyTheme            = "theme"
	KeySidebarCollapsed = "sidebarCollapsed"
	KeyUser             = "user"
	KeySessionID        = "session_id"
	KeyChatEnableSearch = "chat.enable_search"
	KeyChatKBIDs        = "chat.kb_ids"
	KeyModelName        = "model.name"
	KeyModelEmbedding   = "model.embedding"
)

// LegacyKeys are the unprefixed keys written before namespacing was introduced.
var LegacyKeys = []string{KeyTheme, KeySidebarCollapsed, KeyUser, "chat_histories"}

// Backend is a flat string key/value store.
type Backend interface {
	// GetItem returns the raw value for key and whether it exists.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Keys lists every key in the backend, prefixed or not.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the backend's resources.
	Close() error
}

// Storage reads and writes JSON-encoded preferences through a Backend.
type Storage struct {
	backend Backend
	logger  *slog.Logger
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used to report recovered entries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) {
		s.logger = l
	}
}

// New wraps backend.
func New(backend Backend, opts ...Option) *Storage {
	s := &Storage{
		backend: backend,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func prefixed(key string) string {
	return Prefix + key
}

// Get decodes the value stored under key into out and reports whether it
// was found. An entry that is not valid JSON is removed and reported as
// not found, leaving out untouched.
func (s *Storage) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.backend.GetItem(ctx, prefixed(key))
	if err != nil {
		return false, fmt.Errorf("reading preference %q: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("invalid preference value, clearing", "key", key, "error", err)
		if rmErr := s.backend.RemoveItem(ctx, prefixed(key)); rmErr != nil {
			return false, fmt.Errorf("removing invalid preference %q: %w", key, rmErr)
		}
		return false, nil
	}

	return true, nil
}

// Set stores v under key as JSON. When the backend rejects the write, the
// store is cleaned of invalid entries before the error is returned.
func (s *Storage) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding preference %q: %w", key, err)
	}

	if err := s.backend.SetItem(ctx, prefixed(key), string(data)); err != nil {
		s.logger.Error("preference write failed, cleaning up", "key", key, "error", err)
		if _, cleanupErr := s.Cleanup(ctx); cleanupErr != nil {
			s.logger.Error("preference cleanup failed", "error", cleanupErr)
		}
		return fmt.Errorf("writing preference %q: %w", key, err)
	}

	return nil
}

// Remove deletes key.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.backend.RemoveItem(ctx, prefixed(key)); err != nil {
		return fmt.Errorf("removing preference %q: %w", key, err)
	}
	return nil
}

// Keys returns the unprefixed names of every stored preference.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	all, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if name, ok := strings.CutPrefix(k, Prefix); ok {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

// Raw returns the stored JSON text for key without decoding it.
func (s *Storage) Raw(ctx context.Context, key string) (string, bool, error) {
	return s.backend.GetItem(ctx, prefixed(key))
}

// Clear removes every prefixed entry and leaves foreign keys alone.
func (s *Storage) Clear(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return fmt.Errorf("listing preferences: %w", err)
	}

	for _, k := range keys {
		if !strings.HasPrefix(k, Prefix) {
			continue
		}
		if err := s.backend.RemoveItem(ctx, k); err != nil {
			return fmt.Errorf("clearing preference %q: %w", k, err)
		}
	}
	return nil
}

// Cleanup drops prefixed entries whose value is not valid JSON and returns
// how many it removed.
func (s *Storage) Cleanup(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing preferences: %w", err)
	}

	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, Prefix) {
			continue
		}

		raw, ok, err := s.backend.GetItem(ctx, k)
		if err != nil {
			return removed, fmt.Errorf("reading preference %q: %w", k, err)
		}
		if !ok || raw == "" || json.Valid([]byte(raw)) {
			continue
		}

		if err := s.backend.RemoveItem(ctx, k); err != nil {
			return removed, fmt.Errorf("removing preference %q: %w", k, err)
		}
		removed++
	}

	return removed, nil
}

// Size approximates the space used by prefixed entries as the sum of key
// and value lengths.
func (s *Storage) Size(ctx context.Context) (int, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing preferences: %w", err)
	}

	total := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, Prefix) {
			continue
		}
		raw, ok, err := s.backend.GetItem(ctx, k)
		if err != nil {
			return 0, fmt.Errorf("reading preference %q: %w", k, err)
		}
		if ok {
			total += len(k) + len(raw)
		}
	}
	return total, nil
}

// MigrateLegacy moves unprefixed entries under the prefix. A valid legacy
// value is copied only when no prefixed value exists yet; the legacy key is
// removed either way. Invalid legacy values are dropped.
func (s *Storage) MigrateLegacy(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		raw, ok, err := s.backend.GetItem(ctx, key)
		if err != nil {
			return fmt.Errorf("reading legacy preference %q: %w", key, err)
		}
		if !ok || raw == "" {
			continue
		}

		if json.Valid([]byte(raw)) {
			_, exists, err := s.backend.GetItem(ctx, prefixed(key))
			if err != nil {
				return fmt.Errorf("reading preference %q: %w", key, err)
			}
			if !exists {
				if err := s.backend.SetItem(ctx, prefixed(key), raw); err != nil {
					return fmt.Errorf("migrating preference %q: %w", key, err)
				}
				s.logger.Debug("migrated legacy preference", "key", key)
			}
		}

		if err := s.backend.RemoveItem(ctx, key); err != nil {
			return fmt.Errorf("removing legacy preference %q: %w", key, err)
		}
	}
	return nil
}

// Close closes the backend.
func (s *Storage) Close() error {
	return s.backend.Close()
}
