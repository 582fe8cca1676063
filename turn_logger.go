package dialogue

import (
	"context"
	"time"
)

// TurnLogEntry records a single step evaluation within a turn.
type TurnLogEntry struct {
	SessionID string    `json:"session_id"`
	GraphName string    `json:"graph_name"`
	StepName  string    `json:"step_name"`
	Stage     string    `json:"stage,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"`
}

// TurnLogger defines simple step logging interface
type TurnLogger interface {
	// LogTurn logs a completed step evaluation
	LogTurn(ctx context.Context, entry *TurnLogEntry) error

	// GetTurnHistory retrieves the turn log for a session
	GetTurnHistory(ctx context.Context, sessionID string) ([]*TurnLogEntry, error)
}
