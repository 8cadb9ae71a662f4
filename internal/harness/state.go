package harness

import (
	"time"

	"github.com/loykin/smokeprobe/internal/probe"
)

// State is the readiness state of one target.
type State int

const (
	NotStarted State = iota
	Polling
	Ready
	TimedOut
	Exited // fail-fast only: the target died before answering
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Polling:
		return "polling"
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	case Exited:
		return "exited"
	}
	return "unknown"
}

// TargetResult is the final view of one target after Run.
type TargetResult struct {
	Name      string
	State     State
	PID       int
	LaunchErr error
	Attempts  int          // polls performed
	Last      probe.Result // last poll result
	ReadyIn   time.Duration
	Tail      []string
}

// Started reports whether the target became ready.
func (r TargetResult) Started() bool { return r.State == Ready }

// Outcome labels used for metrics and history.
const (
	OutcomeSuccess  = "success"
	OutcomeTimeout  = "timeout"
	OutcomeExited   = "exited"
	OutcomeCanceled = "canceled"
)

// Result summarizes a run.
type Result struct {
	RunID    string
	Outcome  string
	ExitCode int
	Elapsed  time.Duration
	Targets  []TargetResult
}

// Target returns the result for name.
func (r Result) Target(name string) (TargetResult, bool) {
	for _, t := range r.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetResult{}, false
}
