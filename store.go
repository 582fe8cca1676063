package dialogue

import (
	"context"
)

// Store is the durable keyed storage of the latest checkpoint per session.
// A successful Put must survive process restart before the engine reports
// success for the corresponding Start or Resume call.
type Store interface {

	// Put atomically replaces the checkpoint for the checkpoint's session.
	Put(ctx context.Context, checkpoint *Checkpoint) error

	// Get loads the checkpoint for a session. It returns an error wrapping
	// ErrCheckpointNotFound when no checkpoint exists.
	Get(ctx context.Context, sessionID string) (*Checkpoint, error)

	// Delete removes the checkpoint for a session, if any.
	Delete(ctx context.Context, sessionID string) error
}
