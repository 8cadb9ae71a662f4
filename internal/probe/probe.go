package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

// DefaultTimeout bounds a single HTTP attempt against one candidate URL.
const DefaultTimeout = time.Second

// Acceptable status sets for the two stock targets. Any answer from the backend,
// including auth or not-found, proves it is listening; the frontend must serve the app shell.
var (
	BackendAccept  = []int{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}
	FrontendAccept = []int{http.StatusOK}
)

// Result describes the outcome of one Poll.
type Result struct {
	Ready  bool
	URL    string // the winning candidate, or the last one tried
	Status int    // HTTP status of URL, 0 when no response was received
	Err    error  // last transport error, informational only
}

// Check is an immutable readiness definition for one target: an ordered list of
// candidate URLs and the status codes that count as ready.
type Check struct {
	name    string
	urls    []string
	accept  []int
	timeout time.Duration
	client  *http.Client
}

// Option customizes a Check.
type Option func(*Check)

// WithTimeout sets the per-attempt timeout (default 1s).
func WithTimeout(d time.Duration) Option {
	return func(c *Check) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClient sets the HTTP client used for probing. Its own Timeout is ignored
// in favor of the per-attempt timeout.
func WithClient(hc *http.Client) Option {
	return func(c *Check) {
		if hc != nil {
			c.client = hc
		}
	}
}

// New builds a Check. At least one URL and one acceptable status are required.
func New(name string, urls []string, accept []int, opts ...Option) (*Check, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("readiness check %s requires at least one url", name)
	}
	if len(accept) == 0 {
		return nil, fmt.Errorf("readiness check %s requires at least one acceptable status", name)
	}
	for _, code := range accept {
		if code < 100 || code > 599 {
			return nil, fmt.Errorf("readiness check %s: invalid status code %d", name, code)
		}
	}
	c := &Check{
		name:    name,
		urls:    slices.Clone(urls),
		accept:  slices.Clone(accept),
		timeout: DefaultTimeout,
		client:  http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Check) Name() string { return c.name }

// URLs returns a copy of the candidate list in probe order.
func (c *Check) URLs() []string { return slices.Clone(c.urls) }

// Accepts reports whether code counts as ready.
func (c *Check) Accepts(code int) bool { return slices.Contains(c.accept, code) }

// Poll tries each candidate in order and stops at the first acceptable answer.
// Connection refusals, DNS failures, timeouts and unacceptable statuses all mean
// "not ready"; Poll never fails.
func (c *Check) Poll(ctx context.Context) Result {
	var last Result
	for _, u := range c.urls {
		if ctx.Err() != nil {
			return Result{URL: u, Err: ctx.Err()}
		}
		status, err := c.get(ctx, u)
		last = Result{URL: u, Status: status, Err: err}
		if err == nil && c.Accepts(status) {
			last.Ready = true
			return last
		}
	}
	return last
}

func (c *Check) get(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
