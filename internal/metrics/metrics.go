package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smokeprobe",
			Subsystem: "probe",
			Name:      "attempts_total",
			Help:      "Readiness polls per target, by result (ready, not_ready).",
		}, []string{"target", "result"},
	)
	targetReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "smokeprobe",
			Subsystem: "target",
			Name:      "ready",
			Help:      "1 once the target answered with an acceptable status.",
		}, []string{"target"},
	)
	targetReadySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smokeprobe",
			Subsystem: "target",
			Name:      "ready_seconds",
			Help:      "Time from launch until the target became ready.",
			Buckets:   []float64{1, 2, 4, 6, 10, 15, 20, 30, 45, 60, 90, 120},
		}, []string{"target"},
	)
	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smokeprobe",
			Subsystem: "process",
			Name:      "launches_total",
			Help:      "Target launches, by result (ok, error).",
		}, []string{"target", "result"},
	)
	stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smokeprobe",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Target terminations performed by the harness.",
		}, []string{"target"},
	)
	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smokeprobe",
			Subsystem: "harness",
			Name:      "runs_total",
			Help:      "Completed harness runs, by outcome (success, timeout, exited, canceled).",
		}, []string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probeAttempts, targetReady, targetReadySeconds, launches, stops, runs}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are helpers used by the harness. They no-op until Register has been called.

func ObserveProbe(target string, ready bool) {
	if !regOK.Load() {
		return
	}
	result := "not_ready"
	if ready {
		result = "ready"
	}
	probeAttempts.WithLabelValues(target, result).Inc()
}

func SetReady(target string, ready bool, sinceLaunchSeconds float64) {
	if !regOK.Load() {
		return
	}
	if !ready {
		targetReady.WithLabelValues(target).Set(0)
		return
	}
	targetReady.WithLabelValues(target).Set(1)
	targetReadySeconds.WithLabelValues(target).Observe(sinceLaunchSeconds)
}

func IncLaunch(target string, err error) {
	if !regOK.Load() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	launches.WithLabelValues(target, result).Inc()
}

func IncStop(target string) {
	if regOK.Load() {
		stops.WithLabelValues(target).Inc()
	}
}

func IncRun(outcome string) {
	if regOK.Load() {
		runs.WithLabelValues(outcome).Inc()
	}
}
