package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// SQLiteStore is a Store backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database
// and returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_checkpoint_id TEXT NOT NULL DEFAULT '',
			snapshot BLOB NOT NULL,
			metadata BLOB NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (thread_id, checkpoint_id)
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread
			ON checkpoints (thread_id, seq);`,
	)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, threadID, parentID string, state *api.SessionState, meta Metadata) (string, error) {
	snapshot, err := encodeState(state)
	if err != nil {
		return "", err
	}
	metadata, err := encodeMeta(meta)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	// Compare the supplied parent against the current head inside the
	// transaction so two writers for the same thread cannot both append.
	var head string
	err = tx.QueryRowContext(ctx, `
		SELECT checkpoint_id FROM checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC LIMIT 1`,
		threadID,
	).Scan(&head)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if parentID != head {
		return "", ErrParentConflict
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		threadID,
		id,
		parentID,
		snapshot,
		metadata,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) GetLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC LIMIT 1`,
		threadID,
	)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ? AND checkpoint_id = ?`,
		threadID, id,
	)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) List(ctx context.Context, threadID string, opts ListOptions) ([]*Checkpoint, error) {
	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?`
	args := []any{threadID}

	if opts.Before != "" {
		query += ` AND seq < (SELECT seq FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?)`
		args = append(args, threadID, opts.Before)
	}
	query += ` ORDER BY seq DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		ckpt, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ckpt)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	return err
}

func (s *SQLiteStore) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*Checkpoint, error) {
	var (
		ckpt      Checkpoint
		snapshot  []byte
		metadata  []byte
		createdAt string
	)
	if err := row.Scan(&ckpt.ThreadID, &ckpt.ID, &ckpt.ParentID, &snapshot, &metadata, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	state, err := decodeState(snapshot)
	if err != nil {
		return nil, err
	}
	ckpt.State = state

	ckpt.Meta, err = decodeMeta(metadata)
	if err != nil {
		return nil, err
	}

	ckpt.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint created_at: %w", err)
	}
	return &ckpt, nil
}
