//go:build windows

package job

import "os"

func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// os.Process.Signal only supports os.Kill on Windows; probing liveness
	// without terminating the process isn't available through os alone, so
	// we fall back to treating a resolvable handle as alive.
	return proc != nil
}

func terminateProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
