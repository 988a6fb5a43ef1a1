package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// It works with any database/sql driver for Postgres; the caller opens
// the *sql.DB and imports the driver of their choice (pgx stdlib,
// lib/pq, ...).
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema and returns a new
// PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq BIGSERIAL PRIMARY KEY,
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_checkpoint_id TEXT NOT NULL DEFAULT '',
			snapshot BYTEA NOT NULL,
			metadata BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (thread_id, checkpoint_id),
			UNIQUE (thread_id, parent_checkpoint_id)
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread
			ON checkpoints (thread_id, seq);`,
	)
	return err
}

func (s *PostgresStore) Put(ctx context.Context, threadID, parentID string, state *api.SessionState, meta Metadata) (string, error) {
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

	// Serialize appenders per thread. Row locks cannot do this: an empty
	// chain has no row to lock, and under read committed a blocked
	// second appender would still read the pre-commit head. The advisory
	// lock is held until the transaction commits or rolls back.
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, threadID,
	); err != nil {
		return "", err
	}

	var head string
	err = tx.QueryRowContext(ctx, `
		SELECT checkpoint_id FROM checkpoints
		WHERE thread_id = $1
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
		VALUES ($1, $2, $3, $4, $5, $6)`,
		threadID,
		id,
		parentID,
		snapshot,
		metadata,
		time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) GetLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at
		FROM checkpoints
		WHERE thread_id = $1
		ORDER BY seq DESC LIMIT 1`,
		threadID,
	)
	return scanCheckpointPG(row)
}

func (s *PostgresStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at
		FROM checkpoints
		WHERE thread_id = $1 AND checkpoint_id = $2`,
		threadID, id,
	)
	return scanCheckpointPG(row)
}

func (s *PostgresStore) List(ctx context.Context, threadID string, opts ListOptions) ([]*Checkpoint, error) {
	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, snapshot, metadata, created_at
		FROM checkpoints
		WHERE thread_id = $1`
	args := []any{threadID}

	if opts.Before != "" {
		query += ` AND seq < (SELECT seq FROM checkpoints WHERE thread_id = $1 AND checkpoint_id = $2)`
		args = append(args, opts.Before)
	}
	query += ` ORDER BY seq DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		ckpt, err := scanCheckpointPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ckpt)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = $1`, threadID)
	return err
}

func (s *PostgresStore) Threads(ctx context.Context) ([]string, error) {
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

func scanCheckpointPG(row scanner) (*Checkpoint, error) {
	var (
		ckpt     Checkpoint
		snapshot []byte
		metadata []byte
	)
	if err := row.Scan(&ckpt.ThreadID, &ckpt.ID, &ckpt.ParentID, &snapshot, &metadata, &ckpt.CreatedAt); err != nil {
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
	return &ckpt, nil
}
