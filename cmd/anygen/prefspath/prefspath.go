// Package prefspath resolves where the preferences database lives.
package prefspath

import (
	"os"
	"strings"

	"github.com/rshanygen/anygen/pkg/dotdir"
)

// FileName is the preferences database file inside the anygen directory.
const FileName = dotdir.PrefsFile

// ResolvePrefsPath returns the preferences database path. Order of
// precedence is as follows:
//  1. Provided override (--prefs or storage.prefs_path)
//  2. ANYGEN_PREFS environment variable
//  3. prefs.db in the anygen directory resolved from configDir
func ResolvePrefsPath(override, configDir string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("ANYGEN_PREFS")); envPath != "" {
		return envPath, nil
	}

	return dotdir.NewManager().Path(configDir, FileName)
}
