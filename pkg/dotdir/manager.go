// Package dotdir resolves the directory anygen keeps its local state in.
//
// A project can carry its own ./.anygen/ (for example to point one checkout
// at a staging gateway); otherwise ~/.anygen/ is shared by every invocation.
// The directory holds three files:
//
//	config.toml       gateway/RAG URLs, chat defaults, proxy listen address
//	credentials.toml  the gateway bearer token, mode 0600
//	prefs.db          SQLite preferences: current session, theme, kb selection
//
// The --config-dir flag overrides the lookup for every file at once.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the anygen directory.
	DirName = ".anygen"

	// ConfigFile holds the TOML configuration read by pkg/config.
	ConfigFile = "config.toml"

	// CredentialsFile holds the gateway token written by pkg/credentials.
	CredentialsFile = "credentials.toml"

	// PrefsFile is the default preferences database.
	PrefsFile = "prefs.db"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the directory config, credentials and
// preferences are read from and written to. Order of precedence:
//  1. overrideDir (--config-dir), created if missing
//  2. ./.anygen/ when it already exists in the working directory
//  3. ~/.anygen/, created on first use so login and settings can persist
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating anygen directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Path returns the absolute path of the named file inside the target
// directory resolved from overrideDir.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDirExists checks whether a .anygen/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
