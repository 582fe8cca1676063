package dialogue

import "time"

// Checkpoint is the durable snapshot of a session: the record, the cursor
// identifying the step awaiting resumption, and the pending suspension if
// any. It is the only persisted artifact and is replaced atomically on every
// persisted transition.
type Checkpoint struct {
	SessionID  string      `json:"session_id"`
	Record     *Record     `json:"record"`
	Cursor     string      `json:"cursor"`
	Suspension *Suspension `json:"suspension,omitempty"`
	Stage      string      `json:"stage,omitempty"`
	CreatedAt  time.Time   `json:"created_at,omitzero"`
	UpdatedAt  time.Time   `json:"updated_at,omitzero"`
}

// Terminal reports whether the session has reached a terminal step. Terminal
// sessions may still be queried but can no longer be resumed.
func (c *Checkpoint) Terminal() bool {
	return c.Cursor == End
}

// Copy returns a deep copy of the checkpoint.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	return &Checkpoint{
		SessionID:  c.SessionID,
		Record:     c.Record.Clone(),
		Cursor:     c.Cursor,
		Suspension: c.Suspension.Copy(),
		Stage:      c.Stage,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
