// Package watch implements the continuous-polling watcher: it checks the
// RCSB search API for newly released entries matching configured filters,
// downloads them, runs an optional hook, and sends a batch notification.
package watch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

const stateFileName = "watch_state.json"

// dateLayout is the on-disk date format for last_check: date-only, matching
// §6's documented state shape rather than a full timestamp.
const dateLayout = "2006-01-02"

// maxDownloadedIDs bounds the downloaded-id set. At roughly 300 new
// entries a week this covers about eight months of history before pruning.
const maxDownloadedIDs = 10000

// State is the in-memory watcher state. DownloadedIDs is kept as a set for
// O(1) membership checks; MarshalJSON/UnmarshalJSON convert it to and from
// the documented on-disk array shape.
type State struct {
	LastCheck     *time.Time
	DownloadedIDs map[string]bool
}

// jsonState is the on-disk shape: {"last_check":"YYYY-MM-DD","downloaded_ids":["1abc",...]}.
type jsonState struct {
	LastCheck     *string  `json:"last_check,omitempty"`
	DownloadedIDs []string `json:"downloaded_ids"`
}

// MarshalJSON renders the documented on-disk shape: a date-only last_check
// and downloaded_ids as a sorted string array.
func (s State) MarshalJSON() ([]byte, error) {
	js := jsonState{DownloadedIDs: make([]string, 0, len(s.DownloadedIDs))}
	if s.LastCheck != nil {
		d := s.LastCheck.Format(dateLayout)
		js.LastCheck = &d
	}
	for id := range s.DownloadedIDs {
		js.DownloadedIDs = append(js.DownloadedIDs, id)
	}
	sort.Strings(js.DownloadedIDs)
	return json.Marshal(js)
}

// UnmarshalJSON parses the documented on-disk shape back into the set-based
// in-memory representation.
func (s *State) UnmarshalJSON(b []byte) error {
	var js jsonState
	if err := json.Unmarshal(b, &js); err != nil {
		return err
	}
	s.DownloadedIDs = make(map[string]bool, len(js.DownloadedIDs))
	for _, id := range js.DownloadedIDs {
		s.DownloadedIDs[strings.ToLower(id)] = true
	}
	if js.LastCheck != nil && *js.LastCheck != "" {
		t, err := time.Parse(dateLayout, *js.LastCheck)
		if err != nil {
			return pdberr.Wrap(pdberr.StatePersistence, "parse last_check", err)
		}
		s.LastCheck = &t
	}
	return nil
}

// StatePath returns the state file path under cacheDir (typically
// $XDG_CACHE_HOME/pdb-sync).
func StatePath(cacheDir string) string {
	return filepath.Join(cacheDir, stateFileName)
}

// LoadOrInit reads the state file, returning a fresh zero State if absent.
func LoadOrInit(path string) (*State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{DownloadedIDs: make(map[string]bool)}, nil
		}
		return nil, pdberr.Wrap(pdberr.StatePersistence, "read watch state", err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, pdberr.Wrap(pdberr.StatePersistence, "parse watch state", err)
	}
	if s.DownloadedIDs == nil {
		s.DownloadedIDs = make(map[string]bool)
	}
	return &s, nil
}

// Save persists the state, pruning first if oversized.
func (s *State) Save(path string) error {
	s.pruneIfNeeded()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pdberr.Wrap(pdberr.Io, "mkdir state dir", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return pdberr.Wrap(pdberr.StatePersistence, "marshal watch state", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// IsDownloaded reports whether id (lowercased) is already marked.
func (s *State) IsDownloaded(id string) bool {
	return s.DownloadedIDs[strings.ToLower(id)]
}

// MarkDownloaded records id (lowercased) as downloaded.
func (s *State) MarkDownloaded(id string) {
	s.DownloadedIDs[strings.ToLower(id)] = true
}

// UpdateLastCheck records the date the watcher last ran a search.
func (s *State) UpdateLastCheck(t time.Time) {
	s.LastCheck = &t
}

// EffectiveStartDate resolves the date to search from, in priority order:
// an explicit since date, else the last recorded check, else seven days
// before now.
func (s *State) EffectiveStartDate(since *time.Time) time.Time {
	if since != nil {
		return *since
	}
	if s.LastCheck != nil {
		return *s.LastCheck
	}
	return time.Now().AddDate(0, 0, -7)
}

// pruneIfNeeded drains the downloaded-id set to half its cap when it
// exceeds maxDownloadedIDs. Map iteration order is unspecified, so this is
// effectively random sampling; that is acceptable because entries outside
// the search window are never re-queried, and an accidental re-download of
// a pruned id is a harmless no-op.
func (s *State) pruneIfNeeded() {
	if len(s.DownloadedIDs) <= maxDownloadedIDs {
		return
	}
	keep := maxDownloadedIDs / 2
	kept := make(map[string]bool, keep)
	for id := range s.DownloadedIDs {
		if len(kept) >= keep {
			break
		}
		kept[id] = true
	}
	s.DownloadedIDs = kept
}
