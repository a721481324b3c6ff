package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Aria2Options configures an aria2c delegation run.
type Aria2Options struct {
	Parallel    int // -j
	Connections int // -x
	Split       int // -s
}

// DownloadManyAria2 delegates a batch of Tasks to the aria2c binary: it
// writes one input-manifest file describing every task, execs aria2c, and
// then scans the filesystem to determine which destinations exist,
// reporting Success/Failed accordingly (aria2c's own exit code is not a
// reliable per-task signal when some downloads fail and others succeed).
// The manifest is always deleted, on every exit path.
func DownloadManyAria2(ctx context.Context, tasks []Task, opts Aria2Options) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	manifest, err := os.CreateTemp("", "pdbsync-aria2-*.txt")
	if err != nil {
		return nil, pdberr.Wrap(pdberr.Io, "create aria2 manifest", err)
	}
	manifestPath := manifest.Name()
	defer os.Remove(manifestPath)

	for _, t := range tasks {
		if err := os.MkdirAll(filepath.Dir(t.Dest), 0o755); err != nil {
			manifest.Close()
			return nil, pdberr.Wrap(pdberr.Io, "mkdir dest", err)
		}
		fmt.Fprintf(manifest, "%s\n  dir=%s\n  out=%s\n", buildURL(t), filepath.Dir(t.Dest), filepath.Base(t.Dest))
	}
	if err := manifest.Close(); err != nil {
		return nil, pdberr.Wrap(pdberr.Io, "close aria2 manifest", err)
	}

	args := []string{
		"-i", manifestPath,
		fmt.Sprintf("-j%d", nonZero(opts.Parallel, 4)),
		fmt.Sprintf("-x%d", nonZero(opts.Connections, 4)),
		fmt.Sprintf("-s%d", nonZero(opts.Split, 4)),
		"--auto-file-renaming=false",
	}
	cmd := exec.CommandContext(ctx, "aria2c", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// aria2c's exit code is not decisive per-task; we still scan the
		// filesystem below to report what actually landed.
		slog.Warn("aria2c_nonzero_exit", "err", err, "stderr", strings.TrimSpace(stderr.String()))
	}

	results := make([]Result, len(tasks))
	for i, t := range tasks {
		if fi, err := os.Stat(t.Dest); err == nil && !fi.IsDir() {
			results[i] = Result{Task: t, Status: StatusOK, Path: t.Dest, Size: fi.Size()}
		} else {
			results[i] = Result{Task: t, Status: StatusFailed, Err: pdberr.New(pdberr.Download, "aria2c did not produce "+t.Dest)}
		}
	}
	return results, nil
}

// CheckAria2Available reports whether the aria2c binary can be located.
func CheckAria2Available() error {
	if _, err := exec.LookPath("aria2c"); err != nil {
		return pdberr.Wrap(pdberr.ToolNotFound, "aria2c not found on PATH", err)
	}
	return nil
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
