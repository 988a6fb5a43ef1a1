package foundry

import (
	"context"
	"database/sql"

	"github.com/kunalsaurav01/agentic-architect/internal/checkpoint"
	"github.com/kunalsaurav01/agentic-architect/internal/engine"
	"github.com/kunalsaurav01/agentic-architect/internal/evaluator"
	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine             = api.Engine
	SessionState       = api.SessionState
	SessionSummary     = api.SessionSummary
	SessionListOptions = api.SessionListOptions
	StartRequest       = api.StartRequest
	Decision           = api.Decision
	Settings           = api.Settings
	Step               = api.Step
	ApprovalStatus     = api.ApprovalStatus
	Severity           = api.Severity
	SafetyFlag         = api.SafetyFlag
	DraftVersion       = api.DraftVersion
	EmpathyScores      = api.EmpathyScores

	Capabilities     = api.Capabilities
	CompletionClient = api.CompletionClient
	CompletionFunc   = api.CompletionFunc
	Evaluator        = api.Evaluator
	EvaluatorResult  = api.EvaluatorResult
	Generator        = api.Generator
	Advisor          = api.Advisor

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export the step and status values for convenience.

const (
	StepSupervisor     = api.StepSupervisor
	StepDrafting       = api.StepDrafting
	StepClinicalReview = api.StepClinicalReview
	StepSafetyReview   = api.StepSafetyReview
	StepEmpathyReview  = api.StepEmpathyReview
	StepHumanReview    = api.StepHumanReview
	StepFinalize       = api.StepFinalize
	StepTerminated     = api.StepTerminated

	StatusDrafting           = api.StatusDrafting
	StatusInReview           = api.StatusInReview
	StatusPendingHumanReview = api.StatusPendingHumanReview
	StatusHumanEditing       = api.StatusHumanEditing
	StatusApproved           = api.StatusApproved
	StatusRejected           = api.StatusRejected
)

// Engine constructors
// These wrap the internal packages so external callers never need to
// import them.

// NewInMemoryEngine returns an Engine backed by an in-memory checkpoint
// store. Nothing survives a process restart; best for tests and demos.
func NewInMemoryEngine(caps Capabilities, settings Settings) (Engine, error) {
	return engine.New(checkpoint.NewMemoryStore(), caps, settings)
}

// NewSQLiteEngine returns an Engine that persists checkpoints in a
// SQLite database.
func NewSQLiteEngine(db *sql.DB, caps Capabilities, settings Settings) (Engine, error) {
	store, err := checkpoint.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(store, caps, settings)
}

// NewPostgresEngine returns an Engine that persists checkpoints in
// PostgreSQL. The caller supplies the *sql.DB and its driver.
func NewPostgresEngine(db *sql.DB, caps Capabilities, settings Settings) (Engine, error) {
	store, err := checkpoint.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(store, caps, settings)
}

// Capability constructors

// NewModelCapabilities wires the built-in drafting, review and routing
// adapters to the given completion client.
func NewModelCapabilities(client CompletionClient) Capabilities {
	return evaluator.NewCapabilities(client)
}

// NewStaticCapabilities returns deterministic canned capabilities that
// need no model backend. Useful for examples and tests.
func NewStaticCapabilities() Capabilities {
	return evaluator.NewStaticCapabilities()
}

// Convenience helpers that just forward to the underlying Engine.

// Start creates and runs a session until it suspends or finishes.
func Start(ctx context.Context, eng Engine, req StartRequest) (*SessionState, error) {
	return eng.Start(ctx, req)
}

// SubmitDecision applies a human verdict to a suspended session.
func SubmitDecision(ctx context.Context, eng Engine, threadID string, dec Decision) (*SessionState, error) {
	return eng.SubmitDecision(ctx, threadID, dec)
}

// Resume continues a session from its latest checkpoint.
func Resume(ctx context.Context, eng Engine, threadID string) (*SessionState, error) {
	return eng.Resume(ctx, threadID)
}
