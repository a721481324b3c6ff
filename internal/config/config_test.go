package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("missing config file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesTOMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[sync]\nmirror = \"pdbj\"\nformat = \"pdb\"\n\n[download]\nparallel = 8\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Sync.Mirror = "pdbj"
	want.Sync.Format = "pdb"
	want.Download.Parallel = 8
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("TOML overrides not applied (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PDB_DIR", "/tmp/custom-mirror")
	t.Setenv("PDB_SYNC_MIRROR", "wwpdb")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-mirror", cfg.Paths.BaseDir)
	require.Equal(t, "wwpdb", cfg.Sync.Mirror)
	require.Equal(t, "wwpdb", cfg.MirrorSelection.Default)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Sync.Mirror = "pdbe"

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Fatalf("save/load round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateFlagsUnknownMirror(t *testing.T) {
	cfg := Default()
	cfg.Sync.Mirror = "not-a-mirror"
	issues := Validate(cfg)
	require.True(t, HasErrors(issues))
}

func TestValidateAcceptsDefaults(t *testing.T) {
	issues := Validate(Default())
	require.False(t, HasErrors(issues))
}
