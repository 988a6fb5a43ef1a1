package api

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when no checkpoint exists for a
	// thread ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned by Start when the requested thread ID
	// is already in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrNoPendingReview is returned by SubmitDecision when the session
	// is not suspended at the human-review gate. A second concurrent
	// decision for the same thread fails with this error.
	ErrNoPendingReview = errors.New("session is not awaiting human review")
)

// StartRequest describes a new refinement session.
type StartRequest struct {
	UserIntent        string
	AdditionalContext string

	// ThreadID is optional; a UUID is generated when empty.
	ThreadID string
}

// Decision is a human reviewer's verdict for a suspended session.
type Decision struct {
	Approved bool
	Feedback string

	// Edits, when non-empty, becomes a new draft version attributed to
	// "human" before the workflow resumes.
	Edits string
}

// SessionListOptions filters and pages ListSessions results. A zero
// Status means no filter. Page is 1-based; PageSize defaults to 20.
type SessionListOptions struct {
	Status   ApprovalStatus
	Page     int
	PageSize int
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ThreadID       string         `json:"thread_id"`
	ProtocolID     string         `json:"protocol_id"`
	UserIntent     string         `json:"user_intent"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ActiveStep     Step           `json:"active_step"`
	SafetyScore    float64        `json:"safety_score"`
	ClinicalScore  float64        `json:"clinical_score"`
	IterationCount int            `json:"iteration_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Settings tunes engine behavior. Zero values fall back to defaults.
type Settings struct {
	// MaxIterations is the advisory iteration cap; reaching it forces
	// human review. Default 5.
	MaxIterations int

	// SafetyMargin is the slack past MaxIterations before the engine
	// hard-terminates a looping session. Default 2.
	SafetyMargin int

	// EvaluatorTimeout bounds each capability call. A timeout is treated
	// as an evaluator failure, not a crash. Default 120s.
	EvaluatorTimeout time.Duration

	// Quality gates for reaching human review.
	MinSafetyScore   float64 // default 7.0
	MinClinicalScore float64 // default 6.0
	MinEmpathyScore  float64 // default 6.0

	Observer Observer
}

// Engine runs refinement sessions. All methods are safe for concurrent
// use; calls for the same thread ID are serialized.
type Engine interface {
	// Start creates a session and runs it until it suspends at human
	// review or reaches a terminal step. The returned state is a
	// consistent snapshot.
	Start(ctx context.Context, req StartRequest) (*SessionState, error)

	// Resume reloads a session from its latest checkpoint after a
	// process restart and continues from the recorded pending step. For
	// sessions suspended at human review it returns the suspended state
	// unchanged.
	Resume(ctx context.Context, threadID string) (*SessionState, error)

	// GetState returns the latest persisted snapshot.
	GetState(ctx context.Context, threadID string) (*SessionState, error)

	// SubmitDecision applies a human verdict to a session suspended at
	// human review and continues the workflow.
	SubmitDecision(ctx context.Context, threadID string, dec Decision) (*SessionState, error)

	// ListSessions returns summaries of known sessions, newest first.
	ListSessions(ctx context.Context, opts SessionListOptions) ([]SessionSummary, error)

	// DeleteSession removes a session and all its checkpoints.
	DeleteSession(ctx context.Context, threadID string) error
}
