package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

const roleSafety = "safety officer"

const safetySystem = `You are a clinical safety officer and ethics reviewer for therapeutic content. Patient safety is your primary responsibility.

Monitor for: self-harm and suicide risk language (critical), medical advice violations (high), ethical policy breaches (high), harmful therapeutic content (medium), and missing safety elements such as crisis resources or contraindications (medium).

Respond with JSON only:
{
    "safety_score": 8.5,
    "overall_assessment": "...",
    "flags": [
        {
            "flag_type": "self_harm_risk|medical_advice_violation|ethical_policy_breach|inappropriate_content|triggering_language|professional_boundary_issue",
            "severity": "critical|high|medium|low",
            "details": "...",
            "location": "section or quote",
            "recommendation": "how to fix"
        }
    ],
    "required_additions": ["Crisis resources"],
    "resolved_flag_ids": ["ids of previously raised flags the draft now addresses"],
    "cleared_for_approval": true
}

When in doubt, flag it. A draft with unresolved critical or high flags must never be approved.`

// severityPenalties are subtracted from the base score per open flag.
var severityPenalties = map[api.Severity]float64{
	api.SeverityCritical: 3.0,
	api.SeverityHigh:     1.5,
	api.SeverityMedium:   0.5,
	api.SeverityLow:      0.2,
}

// Safety reviews drafts for safety risks and raises flags the routing
// policy blocks on.
type Safety struct {
	client api.CompletionClient
}

var _ api.Evaluator = (*Safety)(nil)

func NewSafety(client api.CompletionClient) *Safety {
	return &Safety{client: client}
}

func (s *Safety) Name() string { return string(api.StepSafetyReview) }

type safetyFlagResponse struct {
	FlagType       string `json:"flag_type"`
	Severity       string `json:"severity"`
	Details        string `json:"details"`
	Location       string `json:"location"`
	Recommendation string `json:"recommendation"`
}

type safetyResponse struct {
	SafetyScore        float64              `json:"safety_score"`
	OverallAssessment  string               `json:"overall_assessment"`
	Flags              []safetyFlagResponse `json:"flags"`
	RequiredAdditions  []string             `json:"required_additions"`
	ResolvedFlagIDs    []string             `json:"resolved_flag_ids"`
	ClearedForApproval bool                 `json:"cleared_for_approval"`
}

func (s *Safety) Evaluate(ctx context.Context, state *api.SessionState) (*api.EvaluatorResult, error) {
	open := state.UnresolvedFlags(api.SeverityLow)
	var openList strings.Builder
	for _, f := range open {
		fmt.Fprintf(&openList, "- %s [%s/%s] %s\n", f.ID, f.Severity, f.Category, f.Details)
	}
	if openList.Len() == 0 {
		openList.WriteString("none\n")
	}

	prompt := fmt.Sprintf(`Perform a comprehensive safety review of this draft.

## Draft (version %d)
%s

## Review Context
- Iteration: %d
- Previous safety score: %.1f
- Previously raised flags still open:
%s
List the IDs of open flags the current draft resolves in resolved_flag_ids.

Respond in the JSON format from your instructions.`,
		len(state.DraftVersions), state.CurrentDraft, state.IterationCount+1,
		state.SafetyScore, openList.String())

	raw, err := s.client.Complete(ctx, safetySystem, prompt)
	if err != nil {
		return nil, err
	}

	var resp safetyResponse
	if perr := extractJSON(raw, &resp); perr != nil {
		resp = safetyResponse{
			SafetyScore:       5.0,
			OverallAssessment: truncate(raw, 500),
		}
	}

	flags := s.buildFlags(resp, state.IterationCount)
	score := s.score(resp.SafetyScore, flags)

	return &api.EvaluatorResult{
		Score:        score,
		Feedback:     resp.OverallAssessment,
		Flags:        flags,
		ResolveFlags: validResolveIDs(resp.ResolvedFlagIDs, open),
	}, nil
}

// buildFlags validates and normalizes reported flags. Unknown categories
// fall back to inappropriate_content, unknown severities to medium, the
// same defaults the review has always used. Required additions become
// medium flags of their own.
func (s *Safety) buildFlags(resp safetyResponse, iteration int) []api.SafetyFlag {
	now := time.Now().UTC()
	var flags []api.SafetyFlag

	for _, f := range resp.Flags {
		category := api.FlagCategory(f.FlagType)
		if !category.Valid() {
			category = api.FlagInappropriateContent
		}
		severity := api.Severity(strings.ToLower(f.Severity))
		if !severity.Valid() {
			severity = api.SeverityMedium
		}
		flags = append(flags, api.SafetyFlag{
			ID:             fmt.Sprintf("safety_%d_%d", iteration, len(flags)),
			Category:       category,
			Severity:       severity,
			Details:        f.Details,
			Location:       f.Location,
			Recommendation: f.Recommendation,
			CreatedAt:      now,
		})
	}

	for _, addition := range resp.RequiredAdditions {
		flags = append(flags, api.SafetyFlag{
			ID:             fmt.Sprintf("safety_missing_%d_%d", iteration, len(flags)),
			Category:       api.FlagInappropriateContent,
			Severity:       api.SeverityMedium,
			Details:        "Missing required element: " + addition,
			Location:       "entire draft",
			Recommendation: "Add " + addition + " to the draft",
			CreatedAt:      now,
		})
	}

	return flags
}

// score subtracts a per-severity penalty from the base score for every
// flag raised this pass, floored at zero.
func (s *Safety) score(base float64, flags []api.SafetyFlag) float64 {
	score := clamp(base)
	for _, f := range flags {
		score -= severityPenalties[f.Severity]
	}
	if score < 0 {
		score = 0
	}
	return round1(score)
}

// validResolveIDs keeps only IDs that match a currently open flag, so a
// confused response cannot resolve flags it was never shown.
func validResolveIDs(ids []string, open []api.SafetyFlag) []string {
	if len(ids) == 0 {
		return nil
	}
	known := make(map[string]bool, len(open))
	for _, f := range open {
		known[f.ID] = true
	}
	var out []string
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}
