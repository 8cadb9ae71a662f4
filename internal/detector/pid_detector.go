package detector

import (
	"context"
	"errors"
	"strconv"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// probeTimeout bounds a single gopsutil lookup.
const probeTimeout = 500 * time.Millisecond

// PIDDetector detects liveness by PID. A zombie (exited but not yet reaped)
// counts as not alive.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) {
	if d.PID <= 0 {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	ok, err := gopsproc.PidExistsWithContext(ctx, int32(d.PID))
	if err != nil || !ok {
		return false, err
	}
	p, err := gopsproc.NewProcessWithContext(ctx, int32(d.PID))
	if err != nil {
		if errors.Is(err, gopsproc.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, err
	}
	st, err := p.StatusWithContext(ctx)
	if err != nil {
		// status is best-effort on some platforms; existence is enough
		return true, nil
	}
	for _, s := range st {
		if s == gopsproc.Zombie {
			return false, nil
		}
	}
	return true, nil
}

func (d PIDDetector) Describe() string { return "pid:" + strconv.Itoa(d.PID) }
