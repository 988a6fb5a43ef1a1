package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the session engine for logging and
// metrics.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay session execution.
type Observer interface {
	// OnSessionStart is called once when a session is created, before
	// the first step executes.
	OnSessionStart(ctx context.Context, state *SessionState)

	// OnStepStart is called before a step executes.
	OnStepStart(ctx context.Context, threadID string, step Step, iteration int)

	// OnStepCompleted is called after a step finishes, for both
	// successes and recovered capability failures (err != nil).
	OnStepCompleted(ctx context.Context, threadID string, step Step, err error, duration time.Duration)

	// OnSuspended is called when a session parks at the human-review
	// gate.
	OnSuspended(ctx context.Context, state *SessionState)

	// OnSessionEnd is called when a session reaches a terminal step.
	// The approval status distinguishes success from rejection.
	OnSessionEnd(ctx context.Context, state *SessionState)

	// OnSessionFailed is called when a session run stops on a
	// persistence error. The session remains resumable.
	OnSessionFailed(ctx context.Context, threadID string, err error)
}

// NoopObserver is an Observer that does nothing. It is the default when
// no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnSessionStart(ctx context.Context, state *SessionState)                    {}
func (NoopObserver) OnStepStart(ctx context.Context, threadID string, step Step, iteration int) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, threadID string, step Step, err error, d time.Duration) {
}
func (NoopObserver) OnSuspended(ctx context.Context, state *SessionState)            {}
func (NoopObserver) OnSessionEnd(ctx context.Context, state *SessionState)           {}
func (NoopObserver) OnSessionFailed(ctx context.Context, threadID string, err error) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnSessionStart(ctx context.Context, state *SessionState) {
	for _, o := range c.observers {
		o.OnSessionStart(ctx, state)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, threadID string, step Step, iteration int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, threadID, step, iteration)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, threadID string, step Step, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, threadID, step, err, d)
	}
}

func (c *CompositeObserver) OnSuspended(ctx context.Context, state *SessionState) {
	for _, o := range c.observers {
		o.OnSuspended(ctx, state)
	}
}

func (c *CompositeObserver) OnSessionEnd(ctx context.Context, state *SessionState) {
	for _, o := range c.observers {
		o.OnSessionEnd(ctx, state)
	}
}

func (c *CompositeObserver) OnSessionFailed(ctx context.Context, threadID string, err error) {
	for _, o := range c.observers {
		o.OnSessionFailed(ctx, threadID, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs session and step
// lifecycle events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnSessionStart(ctx context.Context, state *SessionState) {
	o.Logger.InfoContext(ctx, "session_start",
		slog.String("thread_id", state.ThreadID),
		slog.String("protocol_id", state.ProtocolID),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, threadID string, step Step, iteration int) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("thread_id", threadID),
		slog.String("step", string(step)),
		slog.Int("iteration", iteration),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, threadID string, step Step, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("thread_id", threadID),
		slog.String("step", string(step)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnSuspended(ctx context.Context, state *SessionState) {
	o.Logger.InfoContext(ctx, "session_suspended",
		slog.String("thread_id", state.ThreadID),
		slog.Int("iteration", state.IterationCount),
		slog.Float64("safety_score", state.SafetyScore),
		slog.Float64("clinical_score", state.ClinicalScore),
	)
}

func (o *LoggingObserver) OnSessionEnd(ctx context.Context, state *SessionState) {
	o.Logger.InfoContext(ctx, "session_end",
		slog.String("thread_id", state.ThreadID),
		slog.String("approval_status", string(state.ApprovalStatus)),
		slog.Int("iterations", state.IterationCount),
	)
}

func (o *LoggingObserver) OnSessionFailed(ctx context.Context, threadID string, err error) {
	o.Logger.ErrorContext(ctx, "session_failed",
		slog.String("thread_id", threadID),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	sessionsStarted   atomic.Int64
	sessionsSuspended atomic.Int64
	sessionsEnded     atomic.Int64
	sessionsFailed    atomic.Int64
	stepsCompleted    atomic.Int64
	stepErrors        atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	SessionsStarted   int64
	SessionsSuspended int64
	SessionsEnded     int64
	SessionsFailed    int64

	StepsCompleted  int64
	StepErrors      int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnSessionStart(ctx context.Context, state *SessionState) {
	m.sessionsStarted.Add(1)
}

func (m *BasicMetrics) OnSuspended(ctx context.Context, state *SessionState) {
	m.sessionsSuspended.Add(1)
}

func (m *BasicMetrics) OnSessionEnd(ctx context.Context, state *SessionState) {
	m.sessionsEnded.Add(1)
}

func (m *BasicMetrics) OnSessionFailed(ctx context.Context, threadID string, err error) {
	m.sessionsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, threadID string, step Step, err error, d time.Duration) {
	if err != nil {
		m.stepErrors.Add(1)
		return
	}
	m.stepsCompleted.Add(1)
	m.totalStepDuration.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		SessionsStarted:   m.sessionsStarted.Load(),
		SessionsSuspended: m.sessionsSuspended.Load(),
		SessionsEnded:     m.sessionsEnded.Load(),
		SessionsFailed:    m.sessionsFailed.Load(),
		StepsCompleted:    steps,
		StepErrors:        m.stepErrors.Load(),
		AvgStepDuration:   avg,
	}
}
