// Package credentials stores the gateway bearer token in credentials.toml
// inside the .anygen/ directory.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rshanygen/anygen/pkg/dotdir"
)

const (
	currentVersion = 0
)

// Manager manages reading and writing credentials.toml in the .anygen/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
	now        func() time.Time
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .anygen/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{
		ddm: dotdir.NewManager(),
		now: time.Now,
	}

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, dotdir.CredentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{Version: currentVersion}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetToken stores the gateway token, replacing any previous one.
func (m *Manager) SetToken(tok GatewayToken) error {
	if tok.AccessToken == "" {
		return errors.New("cannot store an empty access token")
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Gateway = &tok

	return m.Save(creds)
}

// GatewayToken returns the stored token record, or nil when none is stored.
// Expired records are returned as-is so callers can report the expiry.
func (m *Manager) GatewayToken() (*GatewayToken, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}
	return creds.Gateway, nil
}

// Token returns the stored access token. It returns an empty string when no
// token is stored or the stored token has expired.
func (m *Manager) Token() (string, error) {
	tok, err := m.GatewayToken()
	if err != nil {
		return "", err
	}

	if tok == nil || tok.Expired(m.now()) {
		return "", nil
	}

	return tok.AccessToken, nil
}

// RemoveToken deletes the stored gateway token. It is a no-op when none is stored.
func (m *Manager) RemoveToken() error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	if creds.Gateway == nil {
		return nil
	}
	creds.Gateway = nil

	return m.Save(creds)
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}
