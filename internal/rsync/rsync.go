// Package rsync wraps the rsync(1) binary for bulk archive synchronization.
// It is a thin subprocess spawner, not a reimplementation of the rsync
// protocol: exec.CommandContext plus buffered-stderr capture.
package rsync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
	"github.com/APTlantis/pdb-sync/internal/pdbformat"
)

// Options configures one rsync invocation.
type Options struct {
	Mirror     mirror.Mirror
	DataType   pdbformat.DataType
	Format     pdbformat.FileFormat
	DestDir    string
	Delete     bool
	BwLimitKBs string // empty means unlimited
	DryRun     bool
	Progress   bool
}

// BuildArgs constructs the rsync argv: "-avz", optional "--progress",
// "--delete", "--bwlimit", "--dry-run", and a per-format include filter,
// then the source and the destination.
func BuildArgs(o Options) []string {
	args := []string{"-avz"}
	if o.Progress {
		args = append(args, "--progress")
	}
	if o.Delete {
		args = append(args, "--delete")
	}
	if o.BwLimitKBs != "" {
		args = append(args, "--bwlimit="+o.BwLimitKBs)
	}
	if o.DryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, "--include="+"*"+o.Format.Extension(), "--exclude=*")
	args = append(args, o.Mirror.RsyncSource(o.DataType, o.Format), strippedDestDir(o.DestDir))
	return args
}

// CommandString renders the argv as a shell-quoted string, used by
// "sync --dry-run" to preview the command without executing it.
func CommandString(o Options) string {
	args := append([]string{"rsync"}, BuildArgs(o)...)
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t\"'") {
			quoted[i] = strconv.Quote(a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}

// Run executes rsync with the given options, streaming stdout lines to
// logger as they arrive and capturing stderr for the error message on
// non-zero exit.
func Run(ctx context.Context, o Options) error {
	if o.DryRun {
		slog.Info("rsync_dry_run", "command", CommandString(o))
		return nil
	}

	cmd := exec.CommandContext(ctx, "rsync", BuildArgs(o)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return pdberr.Wrap(pdberr.Io, "open rsync stdout pipe", err)
	}
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return pdberr.Wrap(pdberr.Job, "start rsync", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Info("rsync_progress", "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		slog.Warn("rsync_stdout_scan_error", "err", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return pdberr.Wrap(pdberr.Network, "rsync canceled", ctx.Err())
		}
		msg := strings.TrimSpace(stderrBuf.String())
		if msg == "" {
			msg = err.Error()
		}
		return pdberr.New(pdberr.Job, fmt.Sprintf("rsync failed: %s", msg))
	}
	return nil
}

// CheckAvailable reports whether the rsync binary can be located.
func CheckAvailable() error {
	if _, err := exec.LookPath("rsync"); err != nil {
		return pdberr.Wrap(pdberr.ToolNotFound, "rsync not found on PATH", err)
	}
	return nil
}

func strippedDestDir(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/"
}
