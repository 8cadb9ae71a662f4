//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so that
// terminating the target also reaches whatever it spawned (npm, vite, java).
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func shellArgv() []string { return []string{"/bin/sh", "-c"} }

func trueCommand() *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/true")
}

// signalGroup sends sig to the process group led by pid, falling back to the
// pid alone when the group is already gone.
func signalGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, sig)
	}
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func terminate(cmd *exec.Cmd) error { return signalGroup(cmd.Process.Pid, syscall.SIGTERM) }

func kill(cmd *exec.Cmd) error { return signalGroup(cmd.Process.Pid, syscall.SIGKILL) }

// signalOnlyGroup signals the group led by pid without falling back to pid
// itself, which may have been reused once the leader was reaped.
func signalOnlyGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func terminateGroup(pid int) error { return signalOnlyGroup(pid, syscall.SIGTERM) }

func killGroup(pid int) error { return signalOnlyGroup(pid, syscall.SIGKILL) }

// groupAlive reports whether any member of the group led by pid still exists.
func groupAlive(pid int) bool {
	err := syscall.Kill(-pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
