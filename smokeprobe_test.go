package smokeprobe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func TestFacadeRunsHarness(t *testing.T) {
	requireUnix(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	check, err := NewCheck("backend", []string{srv.URL + "/api/health"}, []int{200, 401, 403, 404}, time.Second)
	if err != nil {
		t.Fatalf("NewCheck: %v", err)
	}
	var out bytes.Buffer
	h := &Harness{
		Targets:  []Target{{Name: "backend", Spec: Spec{Name: "backend", Command: []string{"sleep", "5"}}, Check: check}},
		Attempts: 3,
		Interval: 10 * time.Millisecond,
		StopWait: time.Second,
		Reporter: NewReporter(&out, true),
	}
	res, err := Run(context.Background(), h)
	if err != nil || ExitCode(err) != 0 || res.ExitCode != 0 {
		t.Fatalf("expected success, got %+v err=%v", res, err)
	}
	if !strings.Contains(out.String(), "SUCCESS") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunNilHarness(t *testing.T) {
	if _, err := Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil harness")
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 || ExitCode(ErrTimeout) != 1 || ExitCode(context.Canceled) != 1 {
		t.Fatalf("unexpected exit code mapping")
	}
	if !errors.Is(ErrTimeout, ErrTimeout) || errors.Is(ErrTimeout, ErrExited) {
		t.Fatalf("sentinels must be distinct")
	}
}

func TestMetricsServerServesMetrics(t *testing.T) {
	if err := RegisterMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("register: %v", err)
	}
	srv := NewMetricsServer(":0")
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || len(b) == 0 {
		t.Fatalf("unexpected metrics response: %d", resp.StatusCode)
	}
}

func TestLoadConfigAndHistorySink(t *testing.T) {
	c, err := LoadConfig("")
	if err != nil || len(c.Targets) != 2 {
		t.Fatalf("LoadConfig defaults: %v", err)
	}
	sink, err := NewHistorySink(filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("NewHistorySink: %v", err)
	}
	if err := sink.Send(context.Background(), HistoryEvent{Type: "run", RunID: "x", Detail: "success"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if c, ok := sink.(io.Closer); ok {
		_ = c.Close()
	}
}
