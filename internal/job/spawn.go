package job

import (
	"os"
	"os/exec"
	"strings"

	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// SpawnBackground re-execs the current binary with the "--bg" flag
// stripped and a hidden "--_job-id=<id>" flag prepended, detaching it from
// the current session so it survives the parent's exit. Returns
// immediately; the spawned process is responsible for reporting its own
// completion via Finalize.
func (m *Manager) SpawnBackground(args []string) (id string, dir string, err error) {
	display := strings.Join(filterBgFlag(args), " ")
	id, dir, err = m.CreateJob(display)
	if err != nil {
		return "", "", err
	}

	exe, err := os.Executable()
	if err != nil {
		return "", "", pdberr.Wrap(pdberr.Job, "resolve executable", err)
	}

	newArgs := append([]string{"--_job-id=" + id}, filterBgFlag(args)...)

	stdout, err := os.OpenFile(m.StdoutPath(id), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", "", pdberr.Wrap(pdberr.Io, "open stdout log", err)
	}
	stderr, err := os.OpenFile(m.StderrPath(id), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		stdout.Close()
		return "", "", pdberr.Wrap(pdberr.Io, "open stderr log", err)
	}

	cmd := exec.Command(exe, newArgs...)
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	detach(cmd)

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return "", "", pdberr.Wrap(pdberr.Job, "spawn detached process", err)
	}
	pid := cmd.Process.Pid
	stdout.Close()
	stderr.Close()

	meta := NewMeta(id, display, pid)
	if err := m.SaveMeta(meta); err != nil {
		return "", "", err
	}
	if err := m.SavePid(id, pid); err != nil {
		return "", "", err
	}
	return id, dir, nil
}

// Finalize is called by the background process itself on completion to
// report its own exit code; the parent never waits on the child, so a
// clean exit is self-reported here, while a liveness-probe-triggered
// Failed(exit_code=1) only happens when the process has vanished without
// finalizing (see RefreshStatus).
func (m *Manager) Finalize(id string, exitCode int) error {
	meta, err := m.LoadMeta(id)
	if err != nil {
		return err
	}
	meta.MarkCompleted(exitCode)
	if err := m.SaveMeta(meta); err != nil {
		return err
	}
	m.RemovePid(id)
	return nil
}

func filterBgFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--bg" {
			continue
		}
		out = append(out, a)
	}
	return out
}
