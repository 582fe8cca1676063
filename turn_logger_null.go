package dialogue

import "context"

// NullTurnLogger is a no-op implementation of TurnLogger.
type NullTurnLogger struct{}

func NewNullTurnLogger() *NullTurnLogger {
	return &NullTurnLogger{}
}

func (l *NullTurnLogger) LogTurn(ctx context.Context, entry *TurnLogEntry) error {
	return nil
}

func (l *NullTurnLogger) GetTurnHistory(ctx context.Context, sessionID string) ([]*TurnLogEntry, error) {
	return nil, nil
}
