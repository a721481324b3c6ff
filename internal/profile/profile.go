// Package profile manages named presets bundling {mirror, format, data
// types, parallel} under ~/.config/pdb-sync/profiles/<name>.toml, selectable
// wherever a mirror id is accepted ("sync [<preset>|wwpdb|...]"). Reuses
// internal/config's TOML load/save pair, generalized to a directory of
// named files instead of one fixed path.
package profile

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Profile is one named preset.
type Profile struct {
	Mirror    string   `toml:"mirror"`
	Format    string   `toml:"format"`
	DataTypes []string `toml:"data_types,omitempty"`
	Parallel  int      `toml:"parallel,omitempty"`
}

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName rejects profile names that aren't safe path components.
func ValidateName(name string) error {
	if name == "" || !nameRe.MatchString(name) {
		return pdberr.New(pdberr.InvalidInput, "profile name must match [a-zA-Z0-9_-]+: "+name)
	}
	return nil
}

// Dir returns the profiles directory: PDB_SYNC_CONFIG_DIR env override's
// "profiles" subdir, else ~/.config/pdb-sync/profiles.
func Dir() string {
	if d := os.Getenv("PDB_SYNC_CONFIG_DIR"); d != "" {
		return filepath.Join(d, "profiles")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("pdb-sync", "profiles")
	}
	return filepath.Join(dir, "pdb-sync", "profiles")
}

func path(name string) string {
	return filepath.Join(Dir(), name+".toml")
}

// List returns the names of all saved profiles, sorted.
func List() ([]string, error) {
	entries, err := os.ReadDir(Dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pdberr.Wrap(pdberr.Io, "read profiles dir", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads a saved profile by name.
func Load(name string) (Profile, error) {
	if err := ValidateName(name); err != nil {
		return Profile{}, err
	}
	b, err := os.ReadFile(path(name))
	if os.IsNotExist(err) {
		return Profile{}, pdberr.New(pdberr.NotFound, "no such profile: "+name)
	}
	if err != nil {
		return Profile{}, pdberr.Wrap(pdberr.Io, "read profile", err)
	}
	var p Profile
	if err := toml.Unmarshal(b, &p); err != nil {
		return Profile{}, pdberr.Wrap(pdberr.Config, "parse profile "+name, err)
	}
	return p, nil
}

// Exists reports whether a profile with this name is already saved.
func Exists(name string) bool {
	_, err := os.Stat(path(name))
	return err == nil
}

// Create saves a new profile, failing if one with the same name already
// exists (use Save to overwrite).
func Create(name string, p Profile) error {
	if Exists(name) {
		return pdberr.New(pdberr.InvalidInput, "profile already exists: "+name)
	}
	return Save(name, p)
}

// Save writes (or overwrites) a profile under name.
func Save(name string, p Profile) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return pdberr.Wrap(pdberr.Io, "mkdir profiles dir", err)
	}
	b, err := toml.Marshal(p)
	if err != nil {
		return pdberr.Wrap(pdberr.Config, "marshal profile", err)
	}
	return os.WriteFile(path(name), b, 0o644)
}

// Delete removes a saved profile.
func Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(path(name)); err != nil {
		if os.IsNotExist(err) {
			return pdberr.New(pdberr.NotFound, "no such profile: "+name)
		}
		return pdberr.Wrap(pdberr.Io, "remove profile", err)
	}
	return nil
}
