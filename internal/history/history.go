package history

import (
	"context"
	"time"
)

// EventType defines the kind of harness event.
type EventType string

const (
	EventLaunch  EventType = "launch"  // target process started (or failed to)
	EventReady   EventType = "ready"   // target answered with an acceptable status
	EventExit    EventType = "exit"    // target exited before becoming ready
	EventTimeout EventType = "timeout" // budget exhausted with the target not ready
	EventStop    EventType = "stop"    // target terminated by the harness
	EventRun     EventType = "run"     // harness finished; Detail carries the outcome
)

// Event is one row of smoke-run history.
type Event struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id"`
	Target     string    `json:"target"` // empty for EventRun
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Attempt    int       `json:"attempt"`
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	Detail     string    `json:"detail"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
