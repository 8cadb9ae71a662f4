package process

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/smokeprobe/internal/detector"
	"github.com/loykin/smokeprobe/internal/logger"
)

const (
	// killWait bounds how long Stop waits for the monitor after SIGKILL.
	killWait = 2 * time.Second
	// pipeWaitDelay bounds how long Wait keeps copying output after the child
	// exited while a grandchild still holds the pipe open.
	pipeWaitDelay = 2 * time.Second
	// groupPollInterval paces the check for leftover group members during Stop.
	groupPollInterval = 20 * time.Millisecond
)

// Process is a launched target. It is owned by a single harness; Stop is
// safe to call any number of times and terminates the process exactly once.
type Process struct {
	spec     Spec
	cmd      *exec.Cmd
	tail     *logger.TailBuffer
	capture  io.WriteCloser
	detector detector.Detector
	waitDone chan struct{} // closed by the monitor when cmd.Wait returns

	mu     sync.Mutex
	status Status

	stopOnce sync.Once
	stopErr  error
}

// Launch starts spec with the merged environment. stdout and stderr share one
// writer: the in-memory tail plus the rotating capture file when configured.
// Output never has to be consumed by the caller.
func Launch(spec Spec, mergedEnv []string) (*Process, error) {
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if mergedEnv != nil {
		cmd.Env = mergedEnv
	}
	configureSysProcAttr(cmd)
	cmd.WaitDelay = pipeWaitDelay

	p := &Process{
		spec:     spec,
		cmd:      cmd,
		tail:     logger.NewTailBuffer(spec.Log.Tail()),
		waitDone: make(chan struct{}),
	}
	var out io.Writer = p.tail
	if w := spec.Log.Writer(spec.Name); w != nil {
		p.capture = w
		out = io.MultiWriter(p.tail, w)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		p.closeCapture()
		return nil, fmt.Errorf("launch %s: %w", spec.Name, err)
	}
	p.status = Status{
		Name:      spec.Name,
		Running:   true,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	p.detector = detector.PIDDetector{PID: cmd.Process.Pid}
	go p.monitor()
	return p, nil
}

func (p *Process) monitor() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.status.Running = false
	p.status.StoppedAt = time.Now()
	p.status.ExitErr = err
	p.mu.Unlock()
	close(p.waitDone)
}

// Name returns the target name.
func (p *Process) Name() string { return p.spec.Name }

// PID returns the OS pid of the launched command.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.waitDone }

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Tail returns the last captured lines of merged output.
func (p *Process) Tail() []string { return p.tail.Lines() }

// Alive reports whether the target is still running and how that was decided.
// A reaped child is not alive; otherwise the pid is checked directly, which catches
// a child that exited while a grandchild still holds its output pipe.
func (p *Process) Alive() (bool, string) {
	select {
	case <-p.waitDone:
		return false, ""
	default:
	}
	d := p.detector
	ok, err := d.Alive()
	if err != nil {
		// unknown: trust the monitor, which has not observed an exit yet
		return true, "exec:wait"
	}
	if !ok {
		return false, ""
	}
	p.mu.Lock()
	p.status.DetectedBy = d.Describe()
	p.mu.Unlock()
	return true, d.Describe()
}

// Stop terminates the target: SIGTERM to its process group, then SIGKILL after
// wait. Only the first call signals; later calls return the first result.
func (p *Process) Stop(wait time.Duration) error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop(wait)
		p.closeCapture()
	})
	return p.stopErr
}

func (p *Process) stop(wait time.Duration) error {
	pid := p.PID()
	// a reaped leader can leave its group behind (`server &; exit 0`), so the
	// group is signalled either way; only a live leader counts as a stop
	if p.reaped() {
		if err := terminateGroup(pid); err != nil {
			return fmt.Errorf("terminate %s group: %w", p.spec.Name, err)
		}
	} else {
		p.mu.Lock()
		p.status.Stopped = true
		p.mu.Unlock()
		if err := terminate(p.cmd); err != nil {
			return fmt.Errorf("terminate %s: %w", p.spec.Name, err)
		}
	}
	if p.waitGone(pid, wait) {
		return nil
	}

	if p.reaped() {
		if err := killGroup(pid); err != nil {
			return fmt.Errorf("kill %s group: %w", p.spec.Name, err)
		}
	} else if err := kill(p.cmd); err != nil {
		return fmt.Errorf("kill %s: %w", p.spec.Name, err)
	}
	select {
	case <-p.waitDone:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("process %s (pid %d) not reaped after kill", p.spec.Name, pid)
	}
}

func (p *Process) reaped() bool {
	select {
	case <-p.waitDone:
		return true
	default:
		return false
	}
}

// waitGone waits up to d for the leader to be reaped and its group to empty.
func (p *Process) waitGone(pid int, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(groupPollInterval)
	defer tick.Stop()
	for {
		if p.reaped() && !groupAlive(pid) {
			return true
		}
		select {
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

func (p *Process) closeCapture() {
	if p.capture != nil {
		_ = p.capture.Close()
		p.capture = nil
	}
}
