package smokeprobe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/smokeprobe/internal/config"
	"github.com/loykin/smokeprobe/internal/harness"
	"github.com/loykin/smokeprobe/internal/history"
	"github.com/loykin/smokeprobe/internal/history/factory"
	"github.com/loykin/smokeprobe/internal/metrics"
	"github.com/loykin/smokeprobe/internal/probe"
	"github.com/loykin/smokeprobe/internal/process"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = process.Spec

type Config = cfg.FileConfig

type Harness = harness.Harness

type Target = harness.Target

type Result = harness.Result

type HistorySink = history.Sink

type HistoryEvent = history.Event

var (
	ErrTimeout = harness.ErrTimeout
	ErrExited  = harness.ErrExited
)

// LoadConfig reads a TOML config on top of the built-in defaults. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewCheck builds a readiness check for the given candidate URLs.
func NewCheck(name string, urls []string, accept []int, timeout time.Duration) (*probe.Check, error) {
	return probe.New(name, urls, accept, probe.WithTimeout(timeout))
}

func NewReporter(out io.Writer, noColor bool) *harness.Reporter {
	return harness.NewReporter(out, noColor)
}

func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// NewMetricsServer returns an HTTP server exposing /metrics for the default registry.
// The caller runs ListenAndServe and Shutdown.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ExitCode maps a harness error to the process exit status: 0 only for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Run executes one smoke run with the given harness.
func Run(ctx context.Context, h *Harness) (Result, error) {
	if h == nil {
		return Result{ExitCode: 1}, errors.New("nil harness")
	}
	return h.Run(ctx)
}
