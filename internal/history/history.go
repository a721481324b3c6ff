// Package history persists the last-sync/last-download timestamps that
// "stats" reports alongside the local tree scan, grounded on
// internal/watch/state.go's load/save-with-default pattern.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// History is the persisted "history.json" record.
type History struct {
	LastSync     *time.Time `json:"last_sync,omitempty"`
	LastDownload *time.Time `json:"last_download,omitempty"`
}

// DefaultPath returns "<cacheDir>/history.json", where cacheDir is
// "<user_cache>/pdb-cli" per the persisted-state layout.
func DefaultPath(cacheDir string) string {
	return filepath.Join(cacheDir, "history.json")
}

// Load reads history.json at path, returning a zero-value History if it
// doesn't exist yet.
func Load(path string) (History, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return History{}, nil
	}
	if err != nil {
		return History{}, pdberr.Wrap(pdberr.Io, "read history file", err)
	}
	var h History
	if err := json.Unmarshal(b, &h); err != nil {
		return History{}, pdberr.Wrap(pdberr.Io, "parse history file", err)
	}
	return h, nil
}

// Save writes h to path atomically via a temp file + rename, creating
// parent directories as needed.
func Save(path string, h History) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pdberr.Wrap(pdberr.Io, "mkdir history dir", err)
	}
	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return pdberr.Wrap(pdberr.Io, "marshal history", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return pdberr.Wrap(pdberr.Io, "write history temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return pdberr.Wrap(pdberr.Io, "rename history temp file", err)
	}
	return nil
}

// RecordSync updates and persists LastSync to now.
func RecordSync(path string, now time.Time) error {
	h, err := Load(path)
	if err != nil {
		return err
	}
	h.LastSync = &now
	return Save(path, h)
}

// RecordDownload updates and persists LastDownload to now.
func RecordDownload(path string, now time.Time) error {
	h, err := Load(path)
	if err != nil {
		return err
	}
	h.LastDownload = &now
	return Save(path, h)
}
