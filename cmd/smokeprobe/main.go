package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	code := 0
	root := buildRoot(stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return code
}

// buildRoot creates the root command. code receives the exit status of a run.
func buildRoot(stdout, stderr io.Writer, code *int) *cobra.Command {
	root := &cobra.Command{
		Use:   "smokeprobe",
		Short: "Launch a backend and a frontend and wait until both respond",
		Long: `Smokeprobe starts the configured servers, polls their HTTP endpoints until all
of them respond or the attempt budget runs out, then stops everything it started.

Examples:
  smokeprobe run                              # backend + frontend defaults
  smokeprobe run --config smoke.toml
  smokeprobe run --attempts 10 --interval 1s --fail-fast
  smokeprobe run --metrics-listen :9090 --history sqlite://smoke.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := &RunFlags{}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	root.AddCommand(
		createRunCommand(flags, stdout, stderr, code),
		createVersionCommand(stdout),
	)
	return root
}

func createVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the smokeprobe version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(stdout, "smokeprobe %s\n", version)
		},
	}
}
