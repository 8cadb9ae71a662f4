package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/smokeprobe"
	"github.com/loykin/smokeprobe/internal/logger"
)

func createRunCommand(flags *RunFlags, stdout, stderr io.Writer, code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the smoke test",
		Long: `Launch every target, poll until all respond or the budget is spent, and stop them.
Exits 0 when every target responded, 1 otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			*code = runSmoke(ctx, *flags, cmd.Flags().Changed, stdout, stderr)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&flags.Attempts, "attempts", 30, "number of polling rounds")
	fs.DurationVar(&flags.Interval, "interval", 2*time.Second, "sleep before each polling round")
	fs.DurationVar(&flags.ProbeTimeout, "probe-timeout", time.Second, "per-request timeout")
	fs.DurationVar(&flags.StopWait, "stop-wait", 5*time.Second, "grace period between SIGTERM and SIGKILL")
	fs.BoolVar(&flags.FailFast, "fail-fast", false, "fail as soon as a target cannot start or exits")
	fs.BoolVar(&flags.UseOSEnv, "use-os-env", true, "start targets from the current environment (false isolates them)")
	fs.StringSliceVar(&flags.EnvKVs, "env", nil, "extra KEY=VALUE for all targets (repeatable)")
	fs.StringSliceVar(&flags.EnvFiles, "env-file", nil, ".env file for all targets (repeatable)")
	fs.StringVar(&flags.LogDir, "log-dir", "", "directory for captured target output")
	fs.StringVar(&flags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVarP(&flags.Verbose, "verbose", "v", false, "shorthand for --log-level=debug")
	fs.BoolVar(&flags.NoColor, "no-color", false, "disable colored output")
	fs.StringVar(&flags.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	fs.StringVar(&flags.HistoryDSN, "history", "", "record run history (sqlite path, postgres:// or clickhouse:// DSN)")
	return cmd
}

// applyFlags overlays command-line values on the loaded config. A flag wins
// only when it was set explicitly; otherwise the file (or its default) stands.
func applyFlags(c *smokeprobe.Config, f RunFlags, changed func(string) bool) {
	if changed("attempts") {
		c.Attempts = f.Attempts
	}
	if changed("interval") {
		c.Interval = f.Interval
	}
	if changed("probe-timeout") {
		c.ProbeTimeout = f.ProbeTimeout
	}
	if changed("stop-wait") {
		c.StopWait = f.StopWait
	}
	if changed("fail-fast") {
		c.FailFast = f.FailFast
	}
	if changed("use-os-env") {
		c.UseOSEnv = f.UseOSEnv
	}
	if changed("env") {
		c.Env = append(c.Env, f.EnvKVs...)
	}
	if changed("env-file") {
		c.EnvFiles = append(c.EnvFiles, f.EnvFiles...)
	}
	if changed("log-dir") {
		c.Log.Dir = f.LogDir
	}
	if changed("log-level") {
		c.Log.Level = f.LogLevel
	}
	if f.Verbose {
		c.Log.Level = "debug"
	}
	if changed("metrics-listen") {
		c.Metrics.Listen = f.MetricsListen
	}
	if changed("history") {
		c.History.DSN = f.HistoryDSN
	}
}

// runSmoke loads config, wires metrics and history, runs the harness and
// returns the exit status. Setup errors are reported on stderr and yield 1.
func runSmoke(ctx context.Context, f RunFlags, changed func(string) bool, stdout, stderr io.Writer) int {
	c, err := smokeprobe.LoadConfig(f.ConfigPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	applyFlags(c, f, changed)

	log := logger.New(stderr, logger.ParseLevel(c.Log.Level), !f.NoColor)

	h, err := c.Build()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}
	h.Logger = log
	h.Reporter = smokeprobe.NewReporter(stdout, f.NoColor)

	if c.Metrics.Listen != "" {
		if err := smokeprobe.RegisterMetricsDefault(); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
		srv := smokeprobe.NewMetricsServer(c.Metrics.Listen)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if c.History.DSN != "" {
		sink, err := smokeprobe.NewHistorySink(c.History.DSN)
		if err != nil {
			// history is auxiliary: the run goes on without it
			log.Warn("history disabled", "error", err)
		} else {
			h.Sink = sink
			if cl, ok := sink.(io.Closer); ok {
				defer func() { _ = cl.Close() }()
			}
		}
	}

	res, err := smokeprobe.Run(ctx, h)
	if err != nil && !errors.Is(err, smokeprobe.ErrTimeout) && !errors.Is(err, smokeprobe.ErrExited) {
		log.Error("run aborted", "error", err)
	}
	log.Debug("run finished", "run_id", res.RunID, "outcome", res.Outcome, "elapsed", res.Elapsed)
	return smokeprobe.ExitCode(err)
}
