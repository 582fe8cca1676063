package dialogue

// RunStatus represents how a Start or Resume call ended.
type RunStatus string

const (
	RunStatusSuspended RunStatus = "suspended"
	RunStatusCompleted RunStatus = "completed"
)

// RunResult is what a Start or Resume call returns: either a suspension
// awaiting the next user reply, or a completed session. Callers render it
// into a user-facing reply; cursor state stays internal.
type RunResult struct {
	SessionID  string      `json:"session_id"`
	Status     RunStatus   `json:"status"`
	Record     *Record     `json:"record"`
	Suspension *Suspension `json:"suspension,omitempty"`
	Stage      string      `json:"stage"`
}

// Suspended reports whether the session is awaiting external input.
func (r *RunResult) Suspended() bool {
	return r.Status == RunStatusSuspended
}

// Completed reports whether the session reached a terminal step.
func (r *RunResult) Completed() bool {
	return r.Status == RunStatusCompleted
}
