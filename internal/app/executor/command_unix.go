//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// killProcessGroup makes cancellation take down the whole process tree, not only the leader.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
