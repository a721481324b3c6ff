package watch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// RunHook executes the user-configured hook script after a download,
// passing pdbID and filePath as argv[1:2] and env PDB_ID/PDB_FILE. Hook
// stderr is surfaced to the operator's stderr; stdout (trimmed) is logged
// at info level. A non-zero exit is a non-fatal warning that never stops
// the watch cycle.
func RunHook(ctx context.Context, script, pdbID, filePath string) error {
	if script == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, script, pdbID, filePath)
	cmd.Env = append(cmd.Environ(), "PDB_ID="+pdbID, "PDB_FILE="+filePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if out := strings.TrimSpace(stdout.String()); out != "" {
		slog.Info("hook_stdout", "pdb_id", pdbID, "output", out)
	}
	if errOut := strings.TrimSpace(stderr.String()); errOut != "" {
		fmt.Fprintln(os.Stderr, errOut)
	}
	if err != nil {
		slog.Warn("hook_nonzero_exit", "pdb_id", pdbID, "script", script, "err", err)
	}
	return nil
}
