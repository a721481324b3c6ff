//go:build windows

package job

import "os/exec"

// detach is a no-op on Windows; there is no setsid equivalent needed for
// the job supervisor's purposes here.
func detach(cmd *exec.Cmd) {}
