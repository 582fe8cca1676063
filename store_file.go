package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore is a file-based Store that persists one JSON checkpoint file per
// session. Replacement is atomic: the checkpoint is written to a temporary
// file and renamed into place.
type FileStore struct {
	dataDir string
}

// NewFileStore creates a new file-based checkpoint store.
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".deepnoodle", "dialogue", "sessions")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) checkpointPath(sessionID string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.json", sessionID))
}

func (s *FileStore) Put(ctx context.Context, checkpoint *Checkpoint) error {
	if checkpoint == nil || checkpoint.SessionID == "" {
		return fmt.Errorf("checkpoint session id required")
	}
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	finalPath := s.checkpointPath(checkpoint.SessionID)
	tmp, err := os.CreateTemp(s.dataDir, checkpoint.SessionID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, sessionID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.checkpointPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %q: %w", sessionID, ErrCheckpointNotFound)
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := os.Remove(s.checkpointPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// SessionSummary describes a stored session's latest checkpoint.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Cursor    string    `json:"cursor"`
	Terminal  bool      `json:"terminal"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ListSessions returns summaries for all stored sessions, newest first.
func (s *FileStore) ListSessions(ctx context.Context) ([]*SessionSummary, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*SessionSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var summaries []*SessionSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".json")
		checkpoint, err := s.Get(ctx, sessionID)
		if err != nil {
			// Skip sessions we can't read
			continue
		}
		summaries = append(summaries, &SessionSummary{
			SessionID: checkpoint.SessionID,
			Stage:     checkpoint.Stage,
			Cursor:    checkpoint.Cursor,
			Terminal:  checkpoint.Terminal(),
			CreatedAt: checkpoint.CreatedAt,
			UpdatedAt: checkpoint.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
