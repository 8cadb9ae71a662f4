package harness

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/fatih/color"
)

// Reporter prints human-readable progress lines. The text is for people, not parsers.
type Reporter struct {
	Out io.Writer

	success *color.Color
	failure *color.Color
	info    *color.Color
	muted   *color.Color
}

// NewReporter returns a Reporter writing to out (stdout when nil).
func NewReporter(out io.Writer, noColor bool) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	r := &Reporter{
		Out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		info:    color.New(color.FgCyan),
		muted:   color.New(color.FgHiBlack),
	}
	if noColor {
		for _, c := range []*color.Color{r.success, r.failure, r.info, r.muted} {
			c.DisableColor()
		}
	}
	return r
}

func (r *Reporter) Starting() {
	fmt.Fprintln(r.Out, "Starting servers...")
}

// Waiting announces the polling budget in whole or fractional seconds ("60s").
func (r *Reporter) Waiting(budget time.Duration) {
	fmt.Fprintf(r.Out, "Waiting for servers to start (up to %ss)...\n", strconv.FormatFloat(budget.Seconds(), 'f', -1, 64))
}

func (r *Reporter) LaunchFailed(name string, err error) {
	r.failure.Fprintf(r.Out, "%s failed to start: %v\n", displayName(name), err)
}

func (r *Reporter) Responding(name, rawURL string) {
	r.info.Fprintf(r.Out, "%s responding on port %s.\n", displayName(name), portOf(rawURL))
}

func (r *Reporter) Exited(name string) {
	r.failure.Fprintf(r.Out, "%s exited before responding.\n", displayName(name))
}

func (r *Reporter) Success() {
	r.success.Fprintln(r.Out, "SUCCESS: Both servers are functional and responding!")
}

// Timeout prints the summary line, then the captured output of every target
// that never became ready.
func (r *Reporter) Timeout(targets []TargetResult) {
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, fmt.Sprintf("%s started: %s", displayName(t.Name), titleBool(t.Started())))
	}
	r.failure.Fprintf(r.Out, "TIMEOUT. %s\n", strings.Join(parts, ", "))
	r.Logs(targets)
}

func (r *Reporter) Logs(targets []TargetResult) {
	fmt.Fprintln(r.Out, "Fetching logs...")
	for _, t := range targets {
		if t.Started() {
			continue
		}
		r.muted.Fprintf(r.Out, "--- %s ---\n", t.Name)
		if len(t.Tail) == 0 {
			r.muted.Fprintln(r.Out, "(no output)")
			continue
		}
		for _, line := range t.Tail {
			fmt.Fprintln(r.Out, line)
		}
	}
}

func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func displayName(name string) string {
	if name == "" {
		return name
	}
	rs := []rune(name)
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}

// portOf returns the explicit or scheme-implied port of rawURL.
func portOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "?"
	}
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}
