package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/loykin/smokeprobe/internal/logger"
)

// Spec describes one target process: what to run and where.
type Spec struct {
	Name    string        `json:"name"`
	Command []string      `json:"command"`  // argv; a single element with shell metacharacters runs under the shell
	WorkDir string        `json:"work_dir"` // optional working dir
	Env     []string      `json:"env"`      // optional extra env, KEY=VALUE
	Log     logger.Config `json:"log"`      // merged stdout/stderr capture
}

// Validate checks that the spec references a runnable target.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("process requires name")
	}
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return fmt.Errorf("process %s requires command", s.Name)
	}
	if s.WorkDir != "" {
		fi, err := os.Stat(s.WorkDir)
		if err != nil {
			return fmt.Errorf("process %s work_dir: %w", s.Name, err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("process %s work_dir %s is not a directory", s.Name, s.WorkDir)
		}
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for the argv vector.
// A one-element command is split on whitespace, or handed to the platform shell
// when it contains metacharacters (e.g. "npm run dev > out.log").
func (s Spec) BuildCommand() *exec.Cmd {
	argv := s.Command
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return trueCommand()
	}
	if len(argv) == 1 {
		line := strings.TrimSpace(argv[0])
		if strings.ContainsAny(line, "|&;<>*?`$\"'(){}[]~") {
			sh := shellArgv()
			// #nosec G204
			return exec.Command(sh[0], append(sh[1:], line)...)
		}
		argv = strings.Fields(line)
	}
	// #nosec G204
	return exec.Command(argv[0], argv[1:]...)
}
