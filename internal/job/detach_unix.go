//go:build !windows

package job

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own session so it survives the parent
// process group's termination.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
