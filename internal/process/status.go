package process

import "time"

// Status is a point-in-time view of a launched target.
type Status struct {
	Name       string    `json:"name"`
	Running    bool      `json:"running"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	ExitErr    error     `json:"exit_error,omitempty"`
	Stopped    bool      `json:"stopped"` // terminated by the harness rather than exiting on its own
	DetectedBy string    `json:"detected_by"`
}
