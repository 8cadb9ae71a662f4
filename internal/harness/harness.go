package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/smokeprobe/internal/env"
	"github.com/loykin/smokeprobe/internal/history"
	"github.com/loykin/smokeprobe/internal/metrics"
	"github.com/loykin/smokeprobe/internal/probe"
	"github.com/loykin/smokeprobe/internal/process"
)

const (
	DefaultAttempts = 30
	DefaultInterval = 2 * time.Second
	DefaultStopWait = 5 * time.Second
)

var (
	// ErrTimeout is returned when the attempt budget ran out before every target was ready.
	ErrTimeout = errors.New("targets not ready before timeout")
	// ErrExited is returned in fail-fast mode when a target died or never launched.
	ErrExited = errors.New("target exited before becoming ready")
)

// Prober decides whether a target is ready. probe.Check implements it.
type Prober interface {
	Poll(ctx context.Context) probe.Result
}

// Handle is a launched target as seen by the harness.
type Handle interface {
	PID() int
	Done() <-chan struct{}
	Alive() (bool, string)
	Tail() []string
	Stop(wait time.Duration) error
}

// Launcher starts a target with its merged environment.
type Launcher func(spec process.Spec, mergedEnv []string) (Handle, error)

// LaunchProcess is the default Launcher.
func LaunchProcess(spec process.Spec, mergedEnv []string) (Handle, error) {
	p, err := process.Launch(spec, mergedEnv)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Target pairs a command with its readiness check.
type Target struct {
	Name  string
	Spec  process.Spec
	Check Prober
}

// Harness launches targets, polls them until all are ready or the budget is
// spent, and always terminates what it launched.
type Harness struct {
	Targets  []Target
	Attempts int
	Interval time.Duration
	StopWait time.Duration
	FailFast bool

	Env      *env.Env
	Launcher Launcher
	Sink     history.Sink // optional
	Reporter *Reporter
	Logger   *slog.Logger
}

type targetRun struct {
	Target
	state     State
	handle    Handle
	launchErr error
	launched  time.Time
	attempts  int
	last      probe.Result
	readyIn   time.Duration
}

func (h *Harness) applyDefaults() {
	if h.Attempts <= 0 {
		h.Attempts = DefaultAttempts
	}
	if h.Interval < 0 {
		h.Interval = 0
	}
	if h.StopWait <= 0 {
		h.StopWait = DefaultStopWait
	}
	if h.Env == nil {
		h.Env = env.New(true)
	}
	if h.Launcher == nil {
		h.Launcher = LaunchProcess
	}
	if h.Reporter == nil {
		h.Reporter = NewReporter(nil, false)
	}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
}

// Run executes one smoke run. The returned Result is always populated; the
// error is nil only when every target became ready.
func (h *Harness) Run(ctx context.Context) (Result, error) {
	h.applyDefaults()
	if len(h.Targets) == 0 {
		return Result{ExitCode: 1}, errors.New("no targets configured")
	}
	for i, t := range h.Targets {
		if t.Check == nil {
			return Result{ExitCode: 1}, fmt.Errorf("target %d (%s) has no readiness check", i, t.Name)
		}
	}

	runID := uuid.NewString()
	log := h.Logger.With("run_id", runID)
	start := time.Now()
	runs := make([]*targetRun, 0, len(h.Targets))

	// every launched process is stopped exactly once, whatever path leaves Run
	defer func() { h.cleanup(runID, log, runs) }()

	h.Reporter.Starting()
	for _, t := range h.Targets {
		tr := &targetRun{Target: t, state: NotStarted}
		runs = append(runs, tr)
		h.launch(ctx, runID, log, tr)
		if tr.launchErr != nil && h.FailFast {
			tr.state = Exited
			return h.finish(ctx, runID, start, runs, OutcomeExited, fmt.Errorf("%s: %w", tr.Name, ErrExited))
		}
	}

	h.Reporter.Waiting(time.Duration(h.Attempts) * h.Interval)
	for attempt := 1; attempt <= h.Attempts; attempt++ {
		if err := sleep(ctx, h.Interval); err != nil {
			return h.finish(ctx, runID, start, runs, OutcomeCanceled, err)
		}
		for _, tr := range runs {
			if tr.state != Polling {
				continue
			}
			res := tr.Check.Poll(ctx)
			tr.attempts = attempt
			tr.last = res
			metrics.ObserveProbe(tr.Name, res.Ready)
			if res.Ready {
				tr.state = Ready
				tr.readyIn = time.Since(tr.launched)
				metrics.SetReady(tr.Name, true, tr.readyIn.Seconds())
				h.Reporter.Responding(tr.Name, res.URL)
				h.record(ctx, log, history.Event{Type: history.EventReady, RunID: runID, Target: tr.Name, PID: tr.pid(), Attempt: attempt, URL: res.URL, Status: res.Status})
				continue
			}
			log.Debug("target not ready", "target", tr.Name, "attempt", attempt, "status", res.Status, "error", res.Err)
			if h.FailFast && tr.exited() {
				tr.state = Exited
				h.Reporter.Exited(tr.Name)
				h.record(ctx, log, history.Event{Type: history.EventExit, RunID: runID, Target: tr.Name, PID: tr.pid(), Attempt: attempt})
				return h.finish(ctx, runID, start, runs, OutcomeExited, fmt.Errorf("%s: %w", tr.Name, ErrExited))
			}
		}
		if allReady(runs) {
			return h.finish(ctx, runID, start, runs, OutcomeSuccess, nil)
		}
	}

	for _, tr := range runs {
		if tr.state == Polling {
			tr.state = TimedOut
			metrics.SetReady(tr.Name, false, 0)
			detail := ""
			if tr.last.Err != nil {
				detail = tr.last.Err.Error()
			}
			h.record(ctx, log, history.Event{Type: history.EventTimeout, RunID: runID, Target: tr.Name, PID: tr.pid(), Attempt: tr.attempts, URL: tr.last.URL, Status: tr.last.Status, Detail: detail})
		}
	}
	return h.finish(ctx, runID, start, runs, OutcomeTimeout, ErrTimeout)
}

func (h *Harness) launch(ctx context.Context, runID string, log *slog.Logger, tr *targetRun) {
	if err := tr.Spec.Validate(); err != nil {
		log.Warn("target spec invalid", "target", tr.Name, "error", err)
	}
	tr.launched = time.Now()
	handle, err := h.Launcher(tr.Spec, h.Env.Merge(tr.Spec.Env))
	metrics.IncLaunch(tr.Name, err)
	ev := history.Event{Type: history.EventLaunch, RunID: runID, Target: tr.Name}
	if err != nil {
		tr.launchErr = err
		ev.Detail = err.Error()
		log.Error("launch failed", "target", tr.Name, "error", err)
		h.Reporter.LaunchFailed(tr.Name, err)
	} else {
		tr.handle = handle
		ev.PID = handle.PID()
		log.Info("launched", "target", tr.Name, "pid", ev.PID, "dir", tr.Spec.WorkDir)
	}
	// keeps polling after a failed launch: something else may already serve the port
	tr.state = Polling
	h.record(ctx, log, ev)
}

func (h *Harness) finish(ctx context.Context, runID string, start time.Time, runs []*targetRun, outcome string, err error) (Result, error) {
	res := Result{RunID: runID, Outcome: outcome, Elapsed: time.Since(start)}
	for _, tr := range runs {
		var tail []string
		if tr.handle != nil {
			tail = tr.handle.Tail()
		}
		res.Targets = append(res.Targets, TargetResult{
			Name:      tr.Name,
			State:     tr.state,
			PID:       tr.pid(),
			LaunchErr: tr.launchErr,
			Attempts:  tr.attempts,
			Last:      tr.last,
			ReadyIn:   tr.readyIn,
			Tail:      tail,
		})
	}
	switch outcome {
	case OutcomeSuccess:
		h.Reporter.Success()
	case OutcomeTimeout:
		h.Reporter.Timeout(res.Targets)
	case OutcomeExited:
		h.Reporter.Logs(res.Targets)
	}
	if err != nil {
		res.ExitCode = 1
	}
	metrics.IncRun(outcome)
	// history outlives a canceled run context
	h.record(context.WithoutCancel(ctx), h.Logger.With("run_id", runID), history.Event{Type: history.EventRun, RunID: runID, Detail: outcome})
	return res, err
}

func (h *Harness) cleanup(runID string, log *slog.Logger, runs []*targetRun) {
	for _, tr := range runs {
		if tr.handle == nil {
			continue
		}
		if err := tr.handle.Stop(h.StopWait); err != nil {
			log.Warn("stop failed", "target", tr.Name, "error", err)
		}
		metrics.IncStop(tr.Name)
		h.record(context.Background(), log, history.Event{Type: history.EventStop, RunID: runID, Target: tr.Name, PID: tr.pid()})
	}
}

// record forwards e to the sink; failures are logged and never change the outcome.
func (h *Harness) record(ctx context.Context, log *slog.Logger, e history.Event) {
	if h.Sink == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := h.Sink.Send(ctx, e); err != nil {
		log.Warn("history send failed", "event", e.Type, "error", err)
	}
}

func (tr *targetRun) pid() int {
	if tr.handle == nil {
		return 0
	}
	return tr.handle.PID()
}

// exited reports whether the target can no longer become ready by itself.
func (tr *targetRun) exited() bool {
	if tr.handle == nil {
		return true
	}
	alive, _ := tr.handle.Alive()
	return !alive
}

func allReady(runs []*targetRun) bool {
	for _, tr := range runs {
		if tr.state != Ready {
			return false
		}
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
