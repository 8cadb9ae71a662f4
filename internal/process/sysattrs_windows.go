//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

func shellArgv() []string { return []string{"cmd", "/c"} }

func trueCommand() *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd", "/c", "rem")
}

// Windows has no SIGTERM for console children; both steps hard-terminate.
func terminate(cmd *exec.Cmd) error { return cmd.Process.Kill() }

func kill(cmd *exec.Cmd) error { return cmd.Process.Kill() }

// Process groups are not tracked once the leader exits.
func terminateGroup(int) error { return nil }

func killGroup(int) error { return nil }

func groupAlive(int) bool { return false }
