package dialogue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists checkpoints in a Postgres table, one row per
// session, replaced with an upsert.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// PostgresStoreOptions configures a PostgresStore.
type PostgresStoreOptions struct {
	// Table is the table name. Defaults to "dialogue_checkpoints".
	Table string
}

// NewPostgresStore creates a store backed by an existing database handle.
func NewPostgresStore(db *sql.DB, opts PostgresStoreOptions) *PostgresStore {
	if opts.Table == "" {
		opts.Table = "dialogue_checkpoints"
	}
	return &PostgresStore{db: db, table: opts.Table}
}

// OpenPostgresStore opens a connection with the pq driver and returns a
// store over it. The caller owns closing the store.
func OpenPostgresStore(dsn string, opts PostgresStoreOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return NewPostgresStore(db, opts), nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			cursor     TEXT NOT NULL,
			suspension JSONB,
			stage      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, checkpoint *Checkpoint) error {
	if checkpoint == nil || checkpoint.SessionID == "" {
		return fmt.Errorf("checkpoint session id required")
	}
	record, err := json.Marshal(checkpoint.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	var suspension []byte
	if checkpoint.Suspension != nil {
		suspension, err = json.Marshal(checkpoint.Suspension)
		if err != nil {
			return fmt.Errorf("failed to marshal suspension: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (session_id, record, cursor, suspension, stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			record = EXCLUDED.record,
			cursor = EXCLUDED.cursor,
			suspension = EXCLUDED.suspension,
			stage = EXCLUDED.stage,
			updated_at = EXCLUDED.updated_at`, s.table),
		checkpoint.SessionID, record, checkpoint.Cursor, suspension,
		checkpoint.Stage, checkpoint.CreatedAt, checkpoint.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT record, cursor, suspension, stage, created_at, updated_at
		FROM %s WHERE session_id = $1`, s.table), sessionID)

	checkpoint := &Checkpoint{SessionID: sessionID}
	var record, suspension []byte
	err := row.Scan(&record, &checkpoint.Cursor, &suspension,
		&checkpoint.Stage, &checkpoint.CreatedAt, &checkpoint.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrCheckpointNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	if err := json.Unmarshal(record, &checkpoint.Record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if len(suspension) > 0 {
		if err := json.Unmarshal(suspension, &checkpoint.Suspension); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suspension: %w", err)
		}
	}
	return checkpoint, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, s.table), sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
