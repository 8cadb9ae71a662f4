package harness

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPortOf(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080/api/health": "8080",
		"http://localhost":                 "80",
		"https://example.com/":             "443",
	}
	for in, want := range tests {
		if got := portOf(in); got != want {
			t.Errorf("portOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWaitingBudgetInSeconds(t *testing.T) {
	tests := map[time.Duration]string{
		30 * 2 * time.Second:       "Waiting for servers to start (up to 60s)...\n",
		3 * 500 * time.Millisecond: "Waiting for servers to start (up to 1.5s)...\n",
	}
	for budget, want := range tests {
		var buf bytes.Buffer
		NewReporter(&buf, true).Waiting(budget)
		if buf.String() != want {
			t.Errorf("Waiting(%s) = %q, want %q", budget, buf.String(), want)
		}
	}
}

func TestTimeoutLineAndLogs(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, true)
	r.Timeout([]TargetResult{
		{Name: "backend", State: TimedOut},
		{Name: "frontend", State: Ready, Tail: []string{"should not print"}},
	})
	s := buf.String()
	if !strings.HasPrefix(s, "TIMEOUT. Backend started: False, Frontend started: True\n") {
		t.Fatalf("unexpected summary: %q", s)
	}
	if !strings.Contains(s, "--- backend ---\n(no output)") || strings.Contains(s, "should not print") {
		t.Fatalf("unexpected logs section: %q", s)
	}
}
