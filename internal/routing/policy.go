// Package routing implements the deterministic step-selection policy.
//
// The supervisor gets an advisory suggestion from an untrusted routing
// capability; Decide combines it with hard override rules that the
// suggestion can never bypass. The policy is a pure function of the
// session state, so it is testable without any capability in place.
package routing

import "github.com/kunalsaurav01/agentic-architect/pkg/api"

// Thresholds are the minimum quality scores required before a session
// may be routed to human review.
type Thresholds struct {
	MinSafety   float64
	MinClinical float64
	MinEmpathy  float64
}

// Decision is the outcome of one routing evaluation.
type Decision struct {
	Next           api.Step
	ShouldContinue bool

	// Forced is set when a hard rule overrode the advisory suggestion.
	Forced bool

	Reason string
}

// Decide selects the actual next step from the current state and an
// advisory suggestion. Rules are evaluated top to bottom, first match
// wins:
//
//  1. no draft yet                          -> drafting
//  2. unresolved critical flag              -> drafting (forced)
//  3. iteration cap reached                 -> human review, stop
//  4. suggestion outside the valid step set -> drafting (forced)
//  5. human review suggested but not ready  -> most urgent unmet review
//  6. otherwise the suggestion is honored
func Decide(state *api.SessionState, suggested api.Step, reasoning string, th Thresholds) Decision {
	if state.CurrentDraft == "" {
		return Decision{
			Next:           api.StepDrafting,
			ShouldContinue: true,
			Forced:         suggested != api.StepDrafting && suggested != "",
			Reason:         "no draft exists yet",
		}
	}

	if state.HasUnresolved(api.SeverityCritical) {
		return Decision{
			Next:           api.StepDrafting,
			ShouldContinue: true,
			Forced:         true,
			Reason:         "unresolved critical safety flags require revision",
		}
	}

	if state.IterationCount >= state.MaxIterations {
		return Decision{
			Next:           api.StepHumanReview,
			ShouldContinue: false,
			Forced:         suggested != api.StepHumanReview,
			Reason:         "iteration cap reached, forcing human review",
		}
	}

	if !suggested.ValidRoute() {
		return Decision{
			Next:           api.StepDrafting,
			ShouldContinue: true,
			Forced:         true,
			Reason:         "advisory suggested an unknown step",
		}
	}

	if suggested == api.StepHumanReview && !Ready(state, th) {
		next := neededReview(state, th)
		return Decision{
			Next:           next,
			ShouldContinue: true,
			Forced:         true,
			Reason:         "quality gates not met for human review",
		}
	}

	return Decision{
		Next:           suggested,
		ShouldContinue: !suggested.Terminal() && suggested != api.StepHumanReview,
		Reason:         reasoning,
	}
}

// Ready reports whether the session meets every gate for human review:
// the safety, clinical and empathy scores are at or above their
// thresholds and no unresolved critical or high flag remains.
func Ready(state *api.SessionState, th Thresholds) bool {
	if state.SafetyScore < th.MinSafety {
		return false
	}
	if len(state.UnresolvedFlags(api.SeverityHigh)) > 0 {
		return false
	}
	if state.ClinicalScore < th.MinClinical {
		return false
	}
	if state.Empathy.Overall < th.MinEmpathy {
		return false
	}
	return true
}

// neededReview picks the single most urgent unmet dimension, in fixed
// priority safety > clinical > empathy. When every threshold is met the
// shortfall must be elsewhere (for example unresolved high flags), so
// the draft goes back for revision.
func neededReview(state *api.SessionState, th Thresholds) api.Step {
	if state.SafetyScore < th.MinSafety {
		return api.StepSafetyReview
	}
	if state.ClinicalScore < th.MinClinical {
		return api.StepClinicalReview
	}
	if state.Empathy.Overall < th.MinEmpathy {
		return api.StepEmpathyReview
	}
	return api.StepDrafting
}

// NextStatus maps a routing target to the approval status the session
// should carry while heading there. Terminal statuses are sticky: an
// approved or rejected session never moves back.
func NextStatus(next api.Step, state *api.SessionState) api.ApprovalStatus {
	if state.ApprovalStatus.Terminal() {
		return state.ApprovalStatus
	}
	switch next {
	case api.StepHumanReview:
		return api.StatusPendingHumanReview
	case api.StepFinalize:
		return api.StatusApproved
	case api.StepTerminated:
		return api.StatusRejected
	}
	if state.CurrentDraft == "" {
		return api.StatusDrafting
	}
	return api.StatusInReview
}
