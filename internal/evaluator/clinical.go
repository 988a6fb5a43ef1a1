package evaluator

import (
	"context"
	"fmt"
	"math"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

const roleClinical = "peer reviewer"

const clinicalSystem = `You are a senior clinical psychologist and peer reviewer evaluating structured therapeutic protocols.

Score the draft on four dimensions, each 0-10:
1. therapeutic_validity - evidence base, theoretical consistency, appropriateness
2. structural_completeness - objectives, progression, technique descriptions, monitoring
3. clinical_tone - professional yet accessible, non-judgmental, collaborative
4. practical_utility - implementable, adaptable, clear instructions

Respond with JSON only:
{
    "therapeutic_validity": {"score": 8, "feedback": "...", "suggestions": ["..."]},
    "structural_completeness": {"score": 7, "feedback": "...", "suggestions": []},
    "clinical_tone": {"score": 9, "feedback": "...", "suggestions": []},
    "practical_utility": {"score": 8, "feedback": "...", "suggestions": []},
    "overall_assessment": "...",
    "priority_revisions": ["most important revision first"]
}`

// ClinicalScoring controls how the per-dimension scores collapse into
// the primary clinical score.
type ClinicalScoring struct {
	Weights map[string]float64

	// ScaleFactor multiplies the re-normalized weighted average. The
	// historical value is 10, which with weights summing to 1 reports
	// the score on a 0-100 scale. Kept configurable so deployments that
	// want a plain 0-10 average can set it to 1.
	ScaleFactor float64
}

// DefaultClinicalScoring returns the scoring used in production.
func DefaultClinicalScoring() ClinicalScoring {
	return ClinicalScoring{
		Weights: map[string]float64{
			"therapeutic_validity":    0.35,
			"structural_completeness": 0.25,
			"clinical_tone":           0.20,
			"practical_utility":       0.20,
		},
		ScaleFactor: 10,
	}
}

// Score collapses dimension scores into the primary clinical score:
// weighted average, re-normalized by the total weight of the dimensions
// present, then scaled. Returns the middle score when no dimension is
// present.
func (c ClinicalScoring) Score(dims map[string]float64) float64 {
	var total, totalWeight, weightSum float64
	for _, w := range c.Weights {
		weightSum += w
	}
	for dim, w := range c.Weights {
		score, ok := dims[dim]
		if !ok {
			continue
		}
		total += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 5.0
	}
	return round1(total / totalWeight * (c.ScaleFactor / math.Max(weightSum, 1)))
}

// Clinical evaluates drafts for therapeutic validity, structure, tone
// and utility.
type Clinical struct {
	client  api.CompletionClient
	scoring ClinicalScoring
}

var _ api.Evaluator = (*Clinical)(nil)

func NewClinical(client api.CompletionClient) *Clinical {
	return &Clinical{client: client, scoring: DefaultClinicalScoring()}
}

// WithScoring overrides the default scoring.
func (c *Clinical) WithScoring(s ClinicalScoring) *Clinical {
	c.scoring = s
	return c
}

func (c *Clinical) Name() string { return string(api.StepClinicalReview) }

type scoredDimension struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

type clinicalResponse struct {
	TherapeuticValidity    scoredDimension `json:"therapeutic_validity"`
	StructuralCompleteness scoredDimension `json:"structural_completeness"`
	ClinicalTone           scoredDimension `json:"clinical_tone"`
	PracticalUtility       scoredDimension `json:"practical_utility"`
	OverallAssessment      string          `json:"overall_assessment"`
	PriorityRevisions      []string        `json:"priority_revisions"`
}

func (c *Clinical) Evaluate(ctx context.Context, state *api.SessionState) (*api.EvaluatorResult, error) {
	prompt := fmt.Sprintf(`Evaluate the following draft.

## Draft (version %d)
%s

## Context
- Iteration %d of the review process
- Previous clinical score: %.1f

Respond in the JSON format from your instructions.`,
		len(state.DraftVersions), state.CurrentDraft, state.IterationCount+1, state.ClinicalScore)

	raw, err := c.client.Complete(ctx, clinicalSystem, prompt)
	if err != nil {
		return nil, err
	}

	var resp clinicalResponse
	if perr := extractJSON(raw, &resp); perr != nil {
		resp = clinicalResponse{
			TherapeuticValidity:    scoredDimension{Score: 6, Feedback: truncate(raw, 500)},
			StructuralCompleteness: scoredDimension{Score: 6},
			ClinicalTone:           scoredDimension{Score: 7},
			PracticalUtility:       scoredDimension{Score: 7},
			OverallAssessment:      truncate(raw, 300),
		}
	}

	dims := map[string]float64{
		"therapeutic_validity":    clamp(resp.TherapeuticValidity.Score),
		"structural_completeness": clamp(resp.StructuralCompleteness.Score),
		"clinical_tone":           clamp(resp.ClinicalTone.Score),
		"practical_utility":       clamp(resp.PracticalUtility.Score),
	}

	var suggestions []string
	for _, d := range []scoredDimension{
		resp.TherapeuticValidity, resp.StructuralCompleteness,
		resp.ClinicalTone, resp.PracticalUtility,
	} {
		suggestions = append(suggestions, d.Suggestions...)
	}
	suggestions = append(suggestions, resp.PriorityRevisions...)

	return &api.EvaluatorResult{
		Score:       c.scoring.Score(dims),
		Dimensions:  dims,
		Feedback:    resp.OverallAssessment,
		Suggestions: suggestions,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
