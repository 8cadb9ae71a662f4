package detector

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func TestPIDDetectorSelfAlive(t *testing.T) {
	d := PIDDetector{PID: os.Getpid()}
	alive, err := d.Alive()
	if err != nil || !alive {
		t.Fatalf("own pid should be alive: alive=%v err=%v", alive, err)
	}
	if d.Describe() == "" || d.Describe()[:4] != "pid:" {
		t.Fatalf("unexpected describe: %q", d.Describe())
	}
}

func TestPIDDetectorInvalidPID(t *testing.T) {
	alive, err := PIDDetector{PID: 0}.Alive()
	if err != nil || alive {
		t.Fatalf("pid 0 must not be alive: alive=%v err=%v", alive, err)
	}
}

func TestPIDDetectorExitedChild(t *testing.T) {
	requireUnix(t)
	cmd := exec.Command("sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid
	// unreaped: the zombie must be reported as not alive
	deadline := time.Now().Add(2 * time.Second)
	for {
		alive, _ := PIDDetector{PID: pid}.Alive()
		if !alive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("exited child still reported alive")
		}
		time.Sleep(20 * time.Millisecond)
	}
	_ = cmd.Wait()
	if alive, _ := (PIDDetector{PID: pid}).Alive(); alive {
		t.Fatalf("reaped child reported alive")
	}
}
