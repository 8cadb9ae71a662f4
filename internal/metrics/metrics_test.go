package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func register(t *testing.T, r prometheus.Registerer) {
	t.Helper()
	regOK.Store(false)
	if err := Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRegisterIdempotentAndHelpersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	register(t, reg)
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	ObserveProbe("backend", false)
	ObserveProbe("backend", false)
	ObserveProbe("backend", true)
	SetReady("backend", true, 6)
	IncLaunch("backend", nil)
	IncLaunch("frontend", errors.New("boom"))
	IncStop("backend")
	IncRun("success")

	if v := testutil.ToFloat64(probeAttempts.WithLabelValues("backend", "not_ready")); v != 2 {
		t.Fatalf("not_ready attempts = %v, want 2", v)
	}
	if v := testutil.ToFloat64(targetReady.WithLabelValues("backend")); v != 1 {
		t.Fatalf("ready gauge = %v, want 1", v)
	}
	if v := testutil.ToFloat64(launches.WithLabelValues("frontend", "error")); v != 1 {
		t.Fatalf("launch errors = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(targetReadySeconds); n != 1 {
		t.Fatalf("ready histogram series = %d, want 1", n)
	}
	if v := testutil.ToFloat64(runs.WithLabelValues("success")); v < 1 {
		t.Fatalf("runs_total not incremented")
	}
}

func TestSetReadyFalseResetsGauge(t *testing.T) {
	register(t, prometheus.NewRegistry())
	SetReady("frontend", true, 2)
	SetReady("frontend", false, 0)
	if v := testutil.ToFloat64(targetReady.WithLabelValues("frontend")); v != 0 {
		t.Fatalf("ready gauge = %v, want 0", v)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	register(t, prometheus.DefaultRegisterer)
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncRun("timeout")

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || !strings.Contains(string(b), "smokeprobe_harness_runs_total") {
		t.Fatalf("metrics output missing runs_total (status %d)", resp.StatusCode)
	}
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	orig := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(orig)

	before := testutil.ToFloat64(stops.WithLabelValues("noop"))
	IncStop("noop")
	ObserveProbe("noop", true)
	SetReady("noop", true, 1)
	IncLaunch("noop", nil)
	IncRun("noop")
	if after := testutil.ToFloat64(stops.WithLabelValues("noop")); after != before {
		t.Fatalf("IncStop recorded before Register")
	}
}

type errorRegisterer struct{}

func (errorRegisterer) Register(prometheus.Collector) error {
	return errors.New("test registration error")
}
func (errorRegisterer) MustRegister(...prometheus.Collector) {}
func (errorRegisterer) Unregister(prometheus.Collector) bool { return false }

func TestRegisterError(t *testing.T) {
	orig := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(orig)
	if err := Register(errorRegisterer{}); err == nil || err.Error() != "test registration error" {
		t.Fatalf("expected registerer error, got %v", err)
	}
}
