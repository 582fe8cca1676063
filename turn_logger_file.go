package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileTurnLogger is an implementation of TurnLogger that logs to a file.
// A file is created per session. The file is formatted as newline-delimited JSON.
type FileTurnLogger struct {
	directory string
}

func NewFileTurnLogger(directory string) *FileTurnLogger {
	return &FileTurnLogger{directory: directory}
}

func (l *FileTurnLogger) sessionTurnLogPath(sessionID string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", sessionID))
}

func (l *FileTurnLogger) GetTurnHistory(ctx context.Context, sessionID string) ([]*TurnLogEntry, error) {
	filePath := l.sessionTurnLogPath(sessionID)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var entries []*TurnLogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry TurnLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (l *FileTurnLogger) LogTurn(ctx context.Context, entry *TurnLogEntry) error {
	json, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	filePath := l.sessionTurnLogPath(entry.SessionID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write([]byte(string(json) + "\n")); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}
