package api

import "context"

// CompletionClient is the narrow surface the built-in capability adapters
// need from a text generation backend. Implementations must be safe for
// concurrent use by many sessions.
type CompletionClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompletionFunc adapts a function to the CompletionClient interface.
type CompletionFunc func(ctx context.Context, system, prompt string) (string, error)

func (f CompletionFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// EvaluatorResult is the structured output of one review pass.
type EvaluatorResult struct {
	// Score is the primary 0-10 score for the evaluator's dimension.
	Score float64

	// Dimensions holds the raw per-criterion scores the primary score
	// was derived from.
	Dimensions map[string]float64

	Feedback    string
	Suggestions []string

	// Flags and ResolveFlags are populated by the safety evaluator only.
	Flags        []SafetyFlag
	ResolveFlags []string

	// Empathy is populated by the empathy evaluator only.
	Empathy *EmpathyScores
}

// Evaluator critiques the current draft along one quality dimension.
// Implementations recover from unparseable backend output by returning a
// documented default result; any returned error is recorded on the
// session's error log and the session continues.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, state *SessionState) (*EvaluatorResult, error)
}

// DraftResult is the output of a drafting pass.
type DraftResult struct {
	Content        string
	ChangesSummary string
}

// Generator produces a new draft revision from the current state.
type Generator interface {
	GenerateDraft(ctx context.Context, state *SessionState) (*DraftResult, error)
}

// RouteSuggestion is the advisory output of the routing capability. It is
// untrusted: the deterministic routing policy can override it.
type RouteSuggestion struct {
	NextStep  Step
	Reasoning string
}

// Advisor proposes the next step for a session. A nil error with an
// out-of-set NextStep is acceptable; the routing policy normalizes it.
type Advisor interface {
	SuggestNext(ctx context.Context, state *SessionState) (*RouteSuggestion, error)
}

// Capabilities bundles the external collaborators a session engine drives.
type Capabilities struct {
	Generator Generator
	Clinical  Evaluator
	Safety    Evaluator
	Empathy   Evaluator
	Advisor   Advisor
}
