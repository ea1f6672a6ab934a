package models

// Status is the lifecycle phase of a tracker.
type Status string

const (
	StatusIdle         Status = "idle"         // Not started, or stopped by the consumer.
	StatusInitializing Status = "initializing" // Watch open, waiting for the first valid fix.
	StatusActive       Status = "active"       // At least one valid fix since the last (re)start.
	StatusFailed       Status = "failed"       // Unsupported, or retries exhausted.
)

// TrackerState is an immutable snapshot of a tracker.
type TrackerState struct {
	Current    *Position        `json:"current,omitempty"`
	LastError  *ErrorDescriptor `json:"last_error,omitempty"`
	Attempt    int              `json:"attempt"`
	Status     Status           `json:"status"`
	Generation uint64           `json:"generation"` // Bumped on every subscription change.
}

// Clone returns a deep copy so observers cannot mutate tracker internals.
func (s TrackerState) Clone() TrackerState {
	out := s
	if s.Current != nil {
		cur := *s.Current
		if s.Current.Accuracy != nil {
			acc := *s.Current.Accuracy
			cur.Accuracy = &acc
		}
		out.Current = &cur
	}
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	return out
}
