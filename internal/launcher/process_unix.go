//go:build !windows

package launcher

import (
	"fmt"
	"os/exec"
	"syscall"
)

// configureProcAttr runs the command in a new process group with itself as leader.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcessGroup signals the whole process group, falling back to the single process.
func killProcessGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil {
			if err2 == syscall.ESRCH {
				return nil
			}
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %w", pid, err, pid, err2)
		}
	}
	return nil
}
