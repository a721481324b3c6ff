// Package config loads and validates pdb-sync's layered configuration:
// compiled-in defaults, a TOML file, environment variables, and finally CLI
// flags, each overriding the previous.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Paths is the [paths] config section.
type Paths struct {
	BaseDir string `toml:"base_dir"`
	CacheDir string `toml:"cache_dir,omitempty"`
}

// Sync is the [sync] config section: rsync defaults.
type Sync struct {
	Mirror   string `toml:"mirror"`
	Format   string `toml:"format"`
	Delete   bool   `toml:"delete"`
	BwLimit  string `toml:"bwlimit,omitempty"`
	Progress bool   `toml:"progress"`
}

// Download is the [download] config section: HTTPS download defaults.
type Download struct {
	Parallel   int    `toml:"parallel"`
	Retry      int    `toml:"retry"`
	Decompress bool   `toml:"decompress"`
	Engine     string `toml:"engine"` // "internal" or "aria2c"
}

// MirrorSelection is the [mirror_selection] config section.
type MirrorSelection struct {
	Default       string `toml:"default"`
	AutoByLatency bool   `toml:"auto_by_latency"`
}

// Config is the fully resolved, layered configuration.
type Config struct {
	Paths           Paths           `toml:"paths"`
	Sync            Sync            `toml:"sync"`
	Download        Download        `toml:"download"`
	MirrorSelection MirrorSelection `toml:"mirror_selection"`
}

// Default returns the compiled-in baseline, the first and lowest-priority
// layer.
func Default() Config {
	return Config{
		Paths: Paths{BaseDir: defaultBaseDir()},
		Sync: Sync{
			Mirror:   "rcsb",
			Format:   "mmcif",
			Progress: true,
		},
		Download: Download{
			Parallel:   4,
			Retry:      3,
			Decompress: true,
			Engine:     "internal",
		},
		MirrorSelection: MirrorSelection{Default: "rcsb"},
	}
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./pdb-mirror"
	}
	return filepath.Join(home, "pdb-mirror")
}

// DefaultPath returns the config file path: PDB_SYNC_CONFIG env override,
// else ~/.config/pdb-sync/config.toml.
func DefaultPath() string {
	if p := os.Getenv("PDB_SYNC_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pdb-sync/config.toml"
	}
	return filepath.Join(dir, "pdb-sync", "config.toml")
}

// Load resolves the effective configuration: defaults, then the TOML file
// at path (if it exists), then environment variables. CLI flags are
// applied afterward by callers that already have the parsed flag values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(b, &cfg); err != nil {
				return cfg, pdberr.Wrap(pdberr.Config, "parse config file: "+path, err)
			}
		case os.IsNotExist(err):
			// Missing config file is not an error; defaults apply.
		default:
			return cfg, pdberr.Wrap(pdberr.Config, "read config file: "+path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PDB_DIR"); v != "" {
		cfg.Paths.BaseDir = v
	}
	if v := os.Getenv("PDB_SYNC_MIRROR"); v != "" {
		cfg.Sync.Mirror = v
		cfg.MirrorSelection.Default = v
	}
}

// Save serializes cfg as TOML to path, creating parent directories.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pdberr.Wrap(pdberr.Io, "mkdir config dir", err)
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return pdberr.Wrap(pdberr.Config, "marshal config", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Issue is one structured configuration problem surfaced by Validate.
type Issue struct {
	Severity   string // "error" or "warning"
	Section    string
	Code       string
	Message    string
	Suggestion string
}

func (i Issue) String() string {
	s := i.Severity + "[" + i.Section + "/" + i.Code + "]: " + i.Message
	if i.Suggestion != "" {
		s += " (suggestion: " + i.Suggestion + ")"
	}
	return s
}

// Validate checks cfg for structural problems and classifies each issue as
// an error or a warning; it does not stop anything itself. Commands do not
// run it at startup: env doctor reports error issues as a failing check.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if cfg.Paths.BaseDir == "" {
		issues = append(issues, Issue{
			Severity: "error", Section: "paths", Code: "empty_base_dir",
			Message: "base_dir must not be empty", Suggestion: "set paths.base_dir or PDB_DIR",
		})
	}

	validMirrors := map[string]bool{"rcsb": true, "pdbj": true, "pdbe": true, "wwpdb": true}
	if !validMirrors[strings.ToLower(cfg.Sync.Mirror)] {
		issues = append(issues, Issue{
			Severity: "error", Section: "sync", Code: "unknown_mirror",
			Message: "unknown mirror: " + cfg.Sync.Mirror, Suggestion: "use one of rcsb, pdbj, pdbe, wwpdb",
		})
	}

	if cfg.Download.Parallel <= 0 {
		issues = append(issues, Issue{
			Severity: "warning", Section: "download", Code: "invalid_parallel",
			Message: "parallel must be positive, defaulting to 4", Suggestion: "set download.parallel >= 1",
		})
	}
	if cfg.Download.Parallel > 64 {
		issues = append(issues, Issue{
			Severity: "warning", Section: "download", Code: "high_parallel",
			Message: "parallel above 64 rarely improves throughput and may trip upstream rate limits",
		})
	}
	if cfg.Download.Engine != "internal" && cfg.Download.Engine != "aria2c" {
		issues = append(issues, Issue{
			Severity: "error", Section: "download", Code: "unknown_engine",
			Message: "unknown engine: " + cfg.Download.Engine, Suggestion: "use internal or aria2c",
		})
	}
	if cfg.Sync.BwLimit != "" {
		if _, err := strconv.Atoi(cfg.Sync.BwLimit); err != nil {
			issues = append(issues, Issue{
				Severity: "warning", Section: "sync", Code: "bwlimit_not_numeric",
				Message: "bwlimit is not a plain integer KB/s value: " + cfg.Sync.BwLimit,
			})
		}
	}

	return issues
}

// HasErrors reports whether any issue is severity "error".
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

// Wrap tags an error with pkg/errors stack context at a config boundary,
// matching the corpus's IO/subprocess wrapping convention.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}
