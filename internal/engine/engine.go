// Package engine runs refinement sessions: it drives the capability
// adapters, applies their deltas to the session state, checkpoints
// after every step, and suspends at the human-review gate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kunalsaurav01/agentic-architect/internal/checkpoint"
	"github.com/kunalsaurav01/agentic-architect/internal/routing"
	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

const (
	defaultMaxIterations    = 5
	defaultSafetyMargin     = 2
	defaultEvaluatorTimeout = 120 * time.Second
	defaultMinSafetyScore   = 7.0
	defaultMinClinicalScore = 6.0
	defaultMinEmpathyScore  = 6.0
)

// Engine is the standard api.Engine implementation.
type Engine struct {
	store    checkpoint.Store
	caps     api.Capabilities
	settings api.Settings
	obs      api.Observer
	th       routing.Thresholds

	// locks serializes step execution per thread. Sessions for
	// different threads run concurrently.
	locks sync.Map // threadID -> *sync.Mutex
}

var _ api.Engine = (*Engine)(nil)

// New validates the dependencies, fills defaulted settings, and returns
// a ready engine.
func New(store checkpoint.Store, caps api.Capabilities, settings api.Settings) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: checkpoint store is required")
	}
	if caps.Generator == nil {
		return nil, errors.New("engine: generator capability is required")
	}
	if caps.Clinical == nil || caps.Safety == nil || caps.Empathy == nil {
		return nil, errors.New("engine: clinical, safety and empathy evaluators are required")
	}
	if caps.Advisor == nil {
		return nil, errors.New("engine: routing advisor is required")
	}

	if settings.MaxIterations <= 0 {
		settings.MaxIterations = defaultMaxIterations
	}
	if settings.SafetyMargin <= 0 {
		settings.SafetyMargin = defaultSafetyMargin
	}
	if settings.EvaluatorTimeout <= 0 {
		settings.EvaluatorTimeout = defaultEvaluatorTimeout
	}
	if settings.MinSafetyScore <= 0 {
		settings.MinSafetyScore = defaultMinSafetyScore
	}
	if settings.MinClinicalScore <= 0 {
		settings.MinClinicalScore = defaultMinClinicalScore
	}
	if settings.MinEmpathyScore <= 0 {
		settings.MinEmpathyScore = defaultMinEmpathyScore
	}

	obs := settings.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}

	return &Engine{
		store:    store,
		caps:     caps,
		settings: settings,
		obs:      obs,
		th: routing.Thresholds{
			MinSafety:   settings.MinSafetyScore,
			MinClinical: settings.MinClinicalScore,
			MinEmpathy:  settings.MinEmpathyScore,
		},
	}, nil
}

func (e *Engine) Start(ctx context.Context, req api.StartRequest) (*api.SessionState, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	unlock := e.lockThread(threadID)
	defer unlock()

	if _, err := e.store.GetLatest(ctx, threadID); err == nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, api.ErrSessionExists)
	} else if !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	state := api.NewSessionState(threadID, uuid.NewString(), req.UserIntent, req.AdditionalContext, e.settings.MaxIterations)
	e.obs.OnSessionStart(ctx, state)

	headID, err := e.store.Put(ctx, threadID, "", state, checkpoint.Metadata{
		Source:      checkpoint.SourceInput,
		StepIndex:   0,
		PendingStep: api.StepSupervisor,
	})
	if err != nil {
		e.obs.OnSessionFailed(ctx, threadID, err)
		return nil, fmt.Errorf("persist initial checkpoint: %w", err)
	}

	return e.run(ctx, state, headID, 0)
}

func (e *Engine) Resume(ctx context.Context, threadID string) (*api.SessionState, error) {
	unlock := e.lockThread(threadID)
	defer unlock()

	head, err := e.loadHead(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state := head.State

	// Suspended and finished sessions come back as-is; anything else
	// picks up at the recorded pending step.
	if state.ApprovalStatus == api.StatusPendingHumanReview ||
		state.ApprovalStatus.Terminal() || state.ActiveStep.Terminal() {
		return state, nil
	}

	return e.run(ctx, state, head.ID, head.Meta.StepIndex)
}

func (e *Engine) GetState(ctx context.Context, threadID string) (*api.SessionState, error) {
	head, err := e.loadHead(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return head.State, nil
}

func (e *Engine) SubmitDecision(ctx context.Context, threadID string, dec api.Decision) (*api.SessionState, error) {
	unlock := e.lockThread(threadID)
	defer unlock()

	head, err := e.loadHead(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state := head.State

	if state.ApprovalStatus != api.StatusPendingHumanReview {
		return nil, fmt.Errorf("thread %s in status %s: %w", threadID, state.ApprovalStatus, api.ErrNoPendingReview)
	}

	state.Apply(decisionDelta(state, dec))
	state.UpdatedAt = time.Now().UTC()

	stepIndex := head.Meta.StepIndex + 1
	headID, err := e.store.Put(ctx, threadID, head.ID, state, checkpoint.Metadata{
		Source:      checkpoint.SourceDecision,
		StepIndex:   stepIndex,
		PendingStep: state.ActiveStep,
	})
	if err != nil {
		e.obs.OnSessionFailed(ctx, threadID, err)
		return nil, fmt.Errorf("persist decision checkpoint: %w", err)
	}

	return e.run(ctx, state, headID, stepIndex)
}

func (e *Engine) ListSessions(ctx context.Context, opts api.SessionListOptions) ([]api.SessionSummary, error) {
	threads, err := e.store.Threads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	summaries := make([]api.SessionSummary, 0, len(threads))
	for _, id := range threads {
		head, err := e.store.GetLatest(ctx, id)
		if err != nil {
			if errors.Is(err, checkpoint.ErrNotFound) {
				continue // deleted between Threads and GetLatest
			}
			return nil, fmt.Errorf("load thread %s: %w", id, err)
		}
		st := head.State
		if opts.Status != "" && st.ApprovalStatus != opts.Status {
			continue
		}
		summaries = append(summaries, api.SessionSummary{
			ThreadID:       st.ThreadID,
			ProtocolID:     st.ProtocolID,
			UserIntent:     st.UserIntent,
			ApprovalStatus: st.ApprovalStatus,
			ActiveStep:     st.ActiveStep,
			SafetyScore:    st.SafetyScore,
			ClinicalScore:  st.ClinicalScore,
			IterationCount: st.IterationCount,
			CreatedAt:      st.CreatedAt,
			UpdatedAt:      st.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	return page(summaries, opts.Page, opts.PageSize), nil
}

func (e *Engine) DeleteSession(ctx context.Context, threadID string) error {
	unlock := e.lockThread(threadID)
	defer unlock()

	if _, err := e.loadHead(ctx, threadID); err != nil {
		return err
	}
	if err := e.store.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

func (e *Engine) loadHead(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	head, err := e.store.GetLatest(ctx, threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("thread %s: %w", threadID, api.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("load session %s: %w", threadID, err)
	}
	return head, nil
}

func (e *Engine) lockThread(threadID string) func() {
	mu, _ := e.locks.LoadOrStore(threadID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func page[T any](items []T, pageNum, pageSize int) []T {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageNum <= 0 {
		pageNum = 1
	}
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
