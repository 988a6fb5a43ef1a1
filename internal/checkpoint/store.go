// Package checkpoint persists per-session state snapshots as an
// append-only, singly-linked chain. The head of a thread's chain is its
// current resumable point.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

var (
	// ErrNotFound is returned when no checkpoint matches the query.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrParentConflict is returned by Put when the supplied parent is
	// not the thread's current head. It guards the chain invariant
	// against concurrent writers for the same thread.
	ErrParentConflict = errors.New("checkpoint parent is not the latest for thread")
)

// Checkpoint sources.
const (
	// SourceInput marks the initial snapshot of a new thread.
	SourceInput = "input"
	// SourceLoop marks a regular step completion.
	SourceLoop = "loop"
	// SourceInterrupt marks the human-review suspension point.
	SourceInterrupt = "interrupt"
	// SourceDecision marks the application of a human decision.
	SourceDecision = "decision"
)

// Metadata describes how a checkpoint came to be.
type Metadata struct {
	Source string `json:"source"`

	// StepIndex counts completed steps for the thread; the initial
	// checkpoint is index 0.
	StepIndex int `json:"step_index"`

	// PendingStep is the step the engine will execute next when it
	// resumes from this checkpoint.
	PendingStep api.Step `json:"pending_step,omitempty"`
}

// Checkpoint is one persisted snapshot. Records are immutable once
// written; only whole-thread deletion removes them.
type Checkpoint struct {
	ThreadID string
	ID       string

	// ParentID is empty for the first checkpoint of a thread.
	ParentID string

	State     *api.SessionState
	Meta      Metadata
	CreatedAt time.Time
}

// ListOptions pages List results. Before, when set, restricts results to
// checkpoints created strictly before the one with that ID. Limit <= 0
// means no limit. Every call re-queries; no cursor state is retained.
type ListOptions struct {
	Before string
	Limit  int
}

// Store is the durable checkpoint log. Implementations must be safe for
// concurrent use across threads and must serialize writes per thread.
type Store interface {
	// Put appends a new checkpoint and returns its ID. parentID must be
	// the thread's current head ("" for the first checkpoint);
	// otherwise ErrParentConflict. The write is atomic.
	Put(ctx context.Context, threadID, parentID string, state *api.SessionState, meta Metadata) (string, error)

	// GetLatest returns the head checkpoint for a thread.
	GetLatest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Get returns one checkpoint by ID.
	Get(ctx context.Context, threadID, id string) (*Checkpoint, error)

	// List returns checkpoints for a thread, newest first.
	List(ctx context.Context, threadID string, opts ListOptions) ([]*Checkpoint, error)

	// DeleteThread removes every checkpoint for a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// Threads returns the IDs of all threads with at least one
	// checkpoint.
	Threads(ctx context.Context) ([]string, error)
}
