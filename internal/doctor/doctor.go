// Package doctor implements "env doctor"'s environment diagnostics: binary
// availability, pdb-dir writability, config validity, and mirror
// reachability. Grounded on internal/config.Validate's Issue shape, reused
// here as the uniform result type for every check.
package doctor

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/APTlantis/pdb-sync/internal/config"
	"github.com/APTlantis/pdb-sync/internal/mirror"
	"github.com/APTlantis/pdb-sync/internal/pdberr"
)

// Check is the outcome of one diagnostic probe.
type Check struct {
	Name    string
	OK      bool
	Message string
}

// Options configures Run.
type Options struct {
	Config  config.Config
	Client  *http.Client
	Timeout time.Duration
}

// Run executes every diagnostic and returns the full list of checks
// regardless of outcome, so callers can print a complete report.
func Run(ctx context.Context, opts Options) []Check {
	var checks []Check
	checks = append(checks, checkBinary("rsync"))
	checks = append(checks, checkBinary("aria2c"))
	checks = append(checks, checkBinary("gemmi"))
	checks = append(checks, checkWritable(opts.Config.Paths.BaseDir))
	checks = append(checks, checkConfig(opts.Config))
	checks = append(checks, checkMirrors(ctx, opts)...)
	return checks
}

// HasFailure reports whether any check failed, the trigger for
// DoctorFailed{ExitCode: 2}.
func HasFailure(checks []Check) bool {
	for _, c := range checks {
		if !c.OK {
			return true
		}
	}
	return false
}

// AsError converts a failing check list into a DoctorFailed pdberr.Error
// with exit code 2.
func AsError(checks []Check) error {
	if !HasFailure(checks) {
		return nil
	}
	e := pdberr.New(pdberr.DoctorFailed, "one or more environment checks failed")
	e.ExitCode = 2
	return e
}

func checkBinary(name string) Check {
	if _, err := exec.LookPath(name); err != nil {
		return Check{Name: name, OK: false, Message: name + " not found on PATH"}
	}
	return Check{Name: name, OK: true, Message: name + " available"}
}

func checkWritable(baseDir string) Check {
	name := "pdb-dir writable"
	if baseDir == "" {
		return Check{Name: name, OK: false, Message: "base_dir is empty"}
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Check{Name: name, OK: false, Message: "cannot create " + baseDir + ": " + err.Error()}
	}
	probe := filepath.Join(baseDir, ".pdb-sync-doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Check{Name: name, OK: false, Message: "cannot write to " + baseDir + ": " + err.Error()}
	}
	_ = os.Remove(probe)
	return Check{Name: name, OK: true, Message: baseDir + " is writable"}
}

func checkConfig(cfg config.Config) Check {
	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		msg := ""
		for _, i := range issues {
			if i.Severity == "error" {
				msg += i.String() + "; "
			}
		}
		return Check{Name: "config valid", OK: false, Message: msg}
	}
	return Check{Name: "config valid", OK: true, Message: "configuration has no blocking errors"}
}

func checkMirrors(ctx context.Context, opts Options) []Check {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	var checks []Check
	for _, m := range []mirror.ID{mirror.Rcsb, mirror.Pdbj, mirror.Pdbe, mirror.Wwpdb} {
		checks = append(checks, checkMirrorReachable(ctx, client, mirror.Get(m)))
	}
	return checks
}

func checkMirrorReachable(ctx context.Context, client *http.Client, m mirror.Mirror) Check {
	name := m.ID.String() + " reachable"
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.HTTPSURL, nil)
	if err != nil {
		return Check{Name: name, OK: false, Message: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, OK: false, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return Check{Name: name, OK: false, Message: "HTTP " + resp.Status}
	}
	return Check{Name: name, OK: true, Message: "HTTP " + resp.Status}
}
