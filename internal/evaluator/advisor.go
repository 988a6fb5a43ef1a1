package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

const roleAdvisor = "workflow supervisor"

const advisorSystem = `You are the workflow supervisor for a multi-step content refinement process. Decide which step should run next.

Available steps:
- drafting: a new draft or revision is needed
- clinical_review: the draft needs clinical evaluation
- safety_review: the draft needs a safety review
- empathy_review: the draft needs a language and warmth evaluation
- human_review: the draft is ready for human approval
- finalize: the draft is approved and complete
- terminated: the process should stop

Consider what has been reviewed this iteration, which quality thresholds are unmet, and whether unresolved issues require revision.

Respond with JSON only:
{
    "next_agent": "drafting|clinical_review|safety_review|empathy_review|human_review|finalize|terminated",
    "reasoning": "why this step was chosen"
}`

// Advisor proposes the next step. Its suggestion is advisory; the
// deterministic routing policy has the final word.
type Advisor struct {
	client api.CompletionClient
}

var _ api.Advisor = (*Advisor)(nil)

func NewAdvisor(client api.CompletionClient) *Advisor {
	return &Advisor{client: client}
}

type advisorResponse struct {
	NextAgent string `json:"next_agent"`
	Reasoning string `json:"reasoning"`
}

func (a *Advisor) SuggestNext(ctx context.Context, state *api.SessionState) (*api.RouteSuggestion, error) {
	prompt := fmt.Sprintf(`Decide the next step for this session.

## Session
- Has draft: %t (versions: %d)
- Iteration: %d of %d
- Safety score: %.1f, clinical score: %.1f, empathy overall: %.1f
- Open safety flags: %d (critical or high: %d)
- Reviews recorded this session: %d
- Approval status: %s

Respond in the JSON format from your instructions.`,
		state.CurrentDraft != "", len(state.DraftVersions),
		state.IterationCount, state.MaxIterations,
		state.SafetyScore, state.ClinicalScore, state.Empathy.Overall,
		len(state.UnresolvedFlags(api.SeverityLow)), len(state.UnresolvedFlags(api.SeverityHigh)),
		len(state.FeedbackEntries), state.ApprovalStatus)

	raw, err := a.client.Complete(ctx, advisorSystem, prompt)
	if err != nil {
		return nil, err
	}

	var resp advisorResponse
	if perr := extractJSON(raw, &resp); perr == nil {
		if step, ok := stepForName(resp.NextAgent); ok {
			return &api.RouteSuggestion{NextStep: step, Reasoning: resp.Reasoning}, nil
		}
	}

	// Unparseable response: fall back to a keyword scan, and failing
	// that suggest another drafting pass.
	return &api.RouteSuggestion{
		NextStep:  keywordStep(raw),
		Reasoning: "Suggestion recovered from unstructured response",
	}, nil
}

// stepForName maps a suggested step name, including the legacy agent
// names, to a routable step.
func stepForName(name string) (api.Step, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "drafting":
		return api.StepDrafting, true
	case "clinical_review", "clinical_critic":
		return api.StepClinicalReview, true
	case "safety_review", "safety_guardian":
		return api.StepSafetyReview, true
	case "empathy_review", "empathy":
		return api.StepEmpathyReview, true
	case "human_review":
		return api.StepHumanReview, true
	case "finalize", "complete":
		return api.StepFinalize, true
	case "terminated", "terminate":
		return api.StepTerminated, true
	}
	return "", false
}

func keywordStep(raw string) api.Step {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "drafting"):
		return api.StepDrafting
	case strings.Contains(lower, "clinical"):
		return api.StepClinicalReview
	case strings.Contains(lower, "safety"):
		return api.StepSafetyReview
	case strings.Contains(lower, "empathy"):
		return api.StepEmpathyReview
	case strings.Contains(lower, "human"), strings.Contains(lower, "review"):
		return api.StepHumanReview
	default:
		return api.StepDrafting
	}
}
