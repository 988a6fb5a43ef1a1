package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kunalsaurav01/agentic-architect/internal/checkpoint"
	"github.com/kunalsaurav01/agentic-architect/internal/routing"
	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// run executes steps from the session's pending step until it suspends
// at human review, reaches a terminal step, or hits a persistence
// error. The caller holds the thread lock.
func (e *Engine) run(ctx context.Context, state *api.SessionState, headID string, stepIndex int) (*api.SessionState, error) {
	for {
		step := state.ActiveStep

		switch {
		case step == api.StepHumanReview:
			e.obs.OnSuspended(ctx, state)
			return state, nil
		case step.Terminal():
			e.obs.OnSessionEnd(ctx, state)
			return state, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.obs.OnStepStart(ctx, state.ThreadID, step, state.IterationCount)
		started := time.Now()
		delta, stepErr := e.execute(ctx, step, state)
		e.obs.OnStepCompleted(ctx, state.ThreadID, step, stepErr, time.Since(started))

		state.Apply(delta)

		// Capability steps hand control back through the guard; the
		// supervisor sets its own next step in the delta.
		if step != api.StepSupervisor {
			state.Apply(e.guard(state))
		}
		state.UpdatedAt = time.Now().UTC()

		stepIndex++
		newHead, err := e.store.Put(ctx, state.ThreadID, headID, state, checkpoint.Metadata{
			Source:      sourceFor(state.ActiveStep),
			StepIndex:   stepIndex,
			PendingStep: state.ActiveStep,
		})
		if err != nil {
			e.obs.OnSessionFailed(ctx, state.ThreadID, err)
			return nil, fmt.Errorf("persist checkpoint after %s: %w", step, err)
		}
		headID = newHead
	}
}

func sourceFor(pending api.Step) string {
	if pending == api.StepHumanReview {
		return checkpoint.SourceInterrupt
	}
	return checkpoint.SourceLoop
}

// execute runs one step and returns the delta to apply. Capability
// failures are recoverable: the error lands in the delta's error log
// and is also returned for observation.
func (e *Engine) execute(ctx context.Context, step api.Step, state *api.SessionState) (api.Delta, error) {
	switch step {
	case api.StepSupervisor:
		return e.supervise(ctx, state)
	case api.StepDrafting:
		return e.draft(ctx, state)
	case api.StepClinicalReview:
		return e.review(ctx, state, e.caps.Clinical, step)
	case api.StepSafetyReview:
		return e.review(ctx, state, e.caps.Safety, step)
	case api.StepEmpathyReview:
		return e.review(ctx, state, e.caps.Empathy, step)
	}
	// Unknown pending step in a checkpoint; route to the supervisor to
	// recover.
	next := api.StepSupervisor
	return api.Delta{
		ActiveStep: &next,
		Errors:     []string{fmt.Sprintf("unknown pending step %q", step)},
	}, nil
}

// supervise asks the advisor for a suggestion, runs it through the
// deterministic policy, and records the routing decision.
func (e *Engine) supervise(ctx context.Context, state *api.SessionState) (api.Delta, error) {
	var (
		delta     api.Delta
		suggested api.Step
		reasoning string
		stepErr   error
	)

	cctx, cancel := context.WithTimeout(ctx, e.settings.EvaluatorTimeout)
	suggestion, err := e.caps.Advisor.SuggestNext(cctx, state)
	cancel()
	if err != nil {
		// An unavailable advisor never stalls the session; the policy
		// treats it as a plain drafting suggestion.
		stepErr = fmt.Errorf("routing advisor: %w", err)
		delta.Errors = append(delta.Errors, stepErr.Error())
		suggested, reasoning = api.StepDrafting, "advisor unavailable"
	} else {
		suggested, reasoning = suggestion.NextStep, suggestion.Reasoning
	}

	dec := routing.Decide(state, suggested, reasoning, e.th)

	iteration := state.IterationCount
	if dec.Next == api.StepDrafting && state.CurrentDraft != "" {
		iteration++
		delta.IterationCount = &iteration
	}

	status := routing.NextStatus(dec.Next, state)
	delta.ActiveStep = &dec.Next
	delta.ApprovalStatus = &status
	delta.RoutingDecisions = []api.RoutingDecision{{
		NextStep:       dec.Next,
		Reasoning:      dec.Reason,
		Forced:         dec.Forced,
		ShouldContinue: dec.ShouldContinue,
		Iteration:      iteration,
		CreatedAt:      time.Now().UTC(),
	}}
	delta.NotesByStep = note(api.StepSupervisor, state.IterationCount,
		fmt.Sprintf("Routing to %s (forced=%t): %s", dec.Next, dec.Forced, dec.Reason))

	return delta, stepErr
}

// draft produces a new draft version.
func (e *Engine) draft(ctx context.Context, state *api.SessionState) (api.Delta, error) {
	cctx, cancel := context.WithTimeout(ctx, e.settings.EvaluatorTimeout)
	result, err := e.caps.Generator.GenerateDraft(cctx, state)
	cancel()
	if err != nil {
		stepErr := fmt.Errorf("drafting: %w", err)
		return api.Delta{Errors: []string{stepErr.Error()}}, stepErr
	}

	version := api.DraftVersion{
		Version:        len(state.DraftVersions) + 1,
		Content:        result.Content,
		ProducedBy:     string(api.StepDrafting),
		ChangesSummary: result.ChangesSummary,
		CreatedAt:      time.Now().UTC(),
	}

	return api.Delta{
		CurrentDraft:  &result.Content,
		DraftVersions: []api.DraftVersion{version},
		DebateLog: []api.DebateEntry{{
			From:      api.StepDrafting,
			Message:   fmt.Sprintf("Draft v%d ready. %s", version.Version, result.ChangesSummary),
			Kind:      "suggestion",
			Iteration: state.IterationCount,
			CreatedAt: version.CreatedAt,
		}},
		NotesByStep: note(api.StepDrafting, state.IterationCount,
			fmt.Sprintf("Produced draft version %d", version.Version)),
	}, nil
}

// review runs one evaluator and folds its result into a delta.
func (e *Engine) review(ctx context.Context, state *api.SessionState, ev api.Evaluator, step api.Step) (api.Delta, error) {
	cctx, cancel := context.WithTimeout(ctx, e.settings.EvaluatorTimeout)
	result, err := ev.Evaluate(cctx, state)
	cancel()
	if err != nil {
		stepErr := fmt.Errorf("%s: %w", step, err)
		return api.Delta{Errors: []string{stepErr.Error()}}, stepErr
	}

	now := time.Now().UTC()
	delta := api.Delta{
		FeedbackEntries: feedbackFor(step, result, state.IterationCount, now),
	}

	switch step {
	case api.StepClinicalReview:
		delta.ClinicalScore = &result.Score
	case api.StepSafetyReview:
		delta.SafetyScore = &result.Score
		delta.SafetyFlags = result.Flags
		delta.ResolveFlags = result.ResolveFlags
	case api.StepEmpathyReview:
		delta.Empathy = result.Empathy
	}

	delta.DebateLog = []api.DebateEntry{debateFor(step, result, state.IterationCount, now)}
	delta.NotesByStep = note(step, state.IterationCount,
		fmt.Sprintf("Review complete, score %.1f", result.Score))

	return delta, nil
}

// feedbackFor converts an evaluator result into persistent feedback
// entries, one per scored dimension plus an overall entry carrying the
// assessment text and suggestions.
func feedbackFor(step api.Step, result *api.EvaluatorResult, iteration int, now time.Time) []api.FeedbackEntry {
	dims := make([]string, 0, len(result.Dimensions))
	for dim := range result.Dimensions {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	entries := make([]api.FeedbackEntry, 0, len(dims)+1)
	for _, dim := range dims {
		entries = append(entries, api.FeedbackEntry{
			ID:        fmt.Sprintf("%s_%s_%d", step, dim, iteration),
			Step:      step,
			Category:  dim,
			Score:     result.Dimensions[dim],
			Iteration: iteration,
			CreatedAt: now,
		})
	}
	entries = append(entries, api.FeedbackEntry{
		ID:          fmt.Sprintf("%s_overall_%d", step, iteration),
		Step:        step,
		Category:    "overall",
		Feedback:    result.Feedback,
		Score:       result.Score,
		Suggestions: result.Suggestions,
		Iteration:   iteration,
		CreatedAt:   now,
	})
	return entries
}

func debateFor(step api.Step, result *api.EvaluatorResult, iteration int, now time.Time) api.DebateEntry {
	kind := "agreement"
	msg := fmt.Sprintf("%s passed with score %.1f", step, result.Score)

	critical := 0
	for _, f := range result.Flags {
		if f.Severity == api.SeverityCritical {
			critical++
		}
	}
	switch {
	case critical > 0:
		kind = "disagreement"
		msg = fmt.Sprintf("%s found %d critical issue(s); revision required", step, critical)
	case len(result.Flags) > 0 || len(result.Suggestions) > 0:
		kind = "critique"
		msg = fmt.Sprintf("%s scored %.1f with %d flag(s) and %d suggestion(s)",
			step, result.Score, len(result.Flags), len(result.Suggestions))
	}

	entry := api.DebateEntry{
		From:      step,
		Message:   msg,
		Kind:      kind,
		Iteration: iteration,
		CreatedAt: now,
	}
	if kind != "agreement" {
		entry.To = api.StepDrafting
	}
	return entry
}

// guard decides where control goes after a capability step: terminal
// statuses finish the session, a runaway iteration count trips the
// hard stop, and everything else returns to the supervisor.
func (e *Engine) guard(state *api.SessionState) api.Delta {
	var next api.Step
	switch {
	case state.ApprovalStatus == api.StatusApproved:
		next = api.StepFinalize
	case state.ApprovalStatus == api.StatusRejected:
		next = api.StepTerminated
	case state.IterationCount > state.MaxIterations+e.settings.SafetyMargin:
		next = api.StepTerminated
		rejected := api.StatusRejected
		return api.Delta{
			ActiveStep:     &next,
			ApprovalStatus: &rejected,
			Errors: []string{fmt.Sprintf(
				"hard iteration stop: %d iterations exceed cap %d plus margin %d",
				state.IterationCount, state.MaxIterations, e.settings.SafetyMargin)},
		}
	default:
		next = api.StepSupervisor
	}
	return api.Delta{ActiveStep: &next}
}

// decisionDelta translates a human verdict into a state delta.
func decisionDelta(state *api.SessionState, dec api.Decision) api.Delta {
	var delta api.Delta
	now := time.Now().UTC()

	if dec.Feedback != "" {
		delta.HumanFeedback = &dec.Feedback
	}

	if dec.Edits != "" {
		version := api.DraftVersion{
			Version:        len(state.DraftVersions) + 1,
			Content:        dec.Edits,
			ProducedBy:     "human",
			ChangesSummary: "Human revision",
			CreatedAt:      now,
		}
		delta.CurrentDraft = &dec.Edits
		delta.DraftVersions = []api.DraftVersion{version}
	}

	var (
		status api.ApprovalStatus
		next   api.Step
	)
	switch {
	case dec.Approved:
		status, next = api.StatusApproved, api.StepFinalize
	case dec.Edits != "":
		status, next = api.StatusHumanEditing, api.StepSupervisor
	default:
		status, next = api.StatusInReview, api.StepSupervisor
	}
	delta.ApprovalStatus = &status
	delta.ActiveStep = &next

	delta.NotesByStep = note(api.StepHumanReview, state.IterationCount,
		fmt.Sprintf("Human decision: approved=%t, edited=%t", dec.Approved, dec.Edits != ""))

	return delta
}

func note(step api.Step, iteration int, text string) map[api.Step][]api.Note {
	return map[api.Step][]api.Note{
		step: {{Text: text, Iteration: iteration, CreatedAt: time.Now().UTC()}},
	}
}
