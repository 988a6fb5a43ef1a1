package evaluator

import (
	"context"
	"fmt"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

const roleEmpathy = "communication specialist"

const empathySystem = `You are a clinical communication specialist and patient experience expert. Ensure therapeutic content is warm, accessible, and emotionally safe.

Score the draft on four dimensions, each 0-10:
1. warmth - compassionate, validating, hopeful but realistic
2. accessibility - 8th-grade reading level, minimal jargon, scannable
3. safety_language - trauma-informed, empowering, collaborative phrasing
4. cultural_sensitivity - inclusive, free of cultural assumptions

Respond with JSON only:
{
    "warmth": {"score": 8, "feedback": "...", "suggestions": ["..."]},
    "accessibility": {"score": 7, "feedback": "...", "reading_level": "8th grade", "jargon_found": ["term"], "suggestions": []},
    "safety_language": {"score": 9, "feedback": "...", "concerning_phrases": ["phrase"], "suggestions": []},
    "cultural_sensitivity": {"score": 8, "feedback": "...", "suggestions": []},
    "top_improvements": [
        {"original": "...", "suggested": "...", "reason": "..."}
    ],
    "strengths": ["..."]
}`

// empathyWeights collapse the four dimensions into the overall score.
var empathyWeights = struct{ warmth, accessibility, safetyLanguage, cultural float64 }{
	warmth:         0.30,
	accessibility:  0.30,
	safetyLanguage: 0.25,
	cultural:       0.15,
}

// maxEmpathySuggestions caps the aggregated suggestion list.
const maxEmpathySuggestions = 10

// Empathy evaluates drafts for warmth, accessibility and patient-safe
// language.
type Empathy struct {
	client api.CompletionClient
}

var _ api.Evaluator = (*Empathy)(nil)

func NewEmpathy(client api.CompletionClient) *Empathy {
	return &Empathy{client: client}
}

func (e *Empathy) Name() string { return string(api.StepEmpathyReview) }

type empathyDimension struct {
	Score             float64  `json:"score"`
	Feedback          string   `json:"feedback"`
	ReadingLevel      string   `json:"reading_level"`
	JargonFound       []string `json:"jargon_found"`
	ConcerningPhrases []string `json:"concerning_phrases"`
	Suggestions       []string `json:"suggestions"`
}

type empathyImprovement struct {
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
}

type empathyResponse struct {
	Warmth              empathyDimension     `json:"warmth"`
	Accessibility       empathyDimension     `json:"accessibility"`
	SafetyLanguage      empathyDimension     `json:"safety_language"`
	CulturalSensitivity empathyDimension     `json:"cultural_sensitivity"`
	TopImprovements     []empathyImprovement `json:"top_improvements"`
	Strengths           []string             `json:"strengths"`
}

func (e *Empathy) Evaluate(ctx context.Context, state *api.SessionState) (*api.EvaluatorResult, error) {
	prompt := fmt.Sprintf(`Evaluate this draft for empathy, warmth, and language quality.

## Draft (version %d)
%s

## Context
- Iteration: %d
- Previous overall empathy score: %.1f

Be specific with examples and actionable suggestions.
Respond in the JSON format from your instructions.`,
		len(state.DraftVersions), state.CurrentDraft, state.IterationCount+1,
		state.Empathy.Overall)

	raw, err := e.client.Complete(ctx, empathySystem, prompt)
	if err != nil {
		return nil, err
	}

	var resp empathyResponse
	if perr := extractJSON(raw, &resp); perr != nil {
		resp = empathyResponse{
			Warmth:              empathyDimension{Score: 6, Feedback: truncate(raw, 300)},
			Accessibility:       empathyDimension{Score: 6, ReadingLevel: "Unknown"},
			SafetyLanguage:      empathyDimension{Score: 7},
			CulturalSensitivity: empathyDimension{Score: 7},
		}
	}

	scores := e.collapse(resp)

	return &api.EvaluatorResult{
		Score: scores.Overall,
		Dimensions: map[string]float64{
			"warmth":               scores.Warmth,
			"accessibility":        scores.Accessibility,
			"safety_language":      scores.SafetyLanguage,
			"cultural_sensitivity": scores.CulturalSensitivity,
		},
		Feedback:    resp.Warmth.Feedback,
		Suggestions: scores.Suggestions,
		Empathy:     &scores,
	}, nil
}

func (e *Empathy) collapse(resp empathyResponse) api.EmpathyScores {
	warmth := clamp(resp.Warmth.Score)
	accessibility := clamp(resp.Accessibility.Score)
	safetyLanguage := clamp(resp.SafetyLanguage.Score)
	cultural := clamp(resp.CulturalSensitivity.Score)

	overall := warmth*empathyWeights.warmth +
		accessibility*empathyWeights.accessibility +
		safetyLanguage*empathyWeights.safetyLanguage +
		cultural*empathyWeights.cultural

	var suggestions []string
	suggestions = append(suggestions, resp.Warmth.Suggestions...)
	suggestions = append(suggestions, resp.Accessibility.Suggestions...)
	for _, j := range resp.Accessibility.JargonFound {
		suggestions = append(suggestions, "Consider simplifying: "+j)
	}
	suggestions = append(suggestions, resp.SafetyLanguage.Suggestions...)
	for _, p := range resp.SafetyLanguage.ConcerningPhrases {
		suggestions = append(suggestions, "Review phrase: "+p)
	}
	suggestions = append(suggestions, resp.CulturalSensitivity.Suggestions...)
	for _, imp := range resp.TopImprovements {
		if imp.Original != "" && imp.Suggested != "" {
			suggestions = append(suggestions,
				fmt.Sprintf("Replace %q with %q (%s)", imp.Original, imp.Suggested, imp.Reason))
		}
	}
	if len(suggestions) > maxEmpathySuggestions {
		suggestions = suggestions[:maxEmpathySuggestions]
	}

	return api.EmpathyScores{
		Warmth:              round1(warmth),
		Accessibility:       round1(accessibility),
		SafetyLanguage:      round1(safetyLanguage),
		CulturalSensitivity: round1(cultural),
		Overall:             round1(overall),
		ReadabilityGrade:    resp.Accessibility.ReadingLevel,
		Suggestions:         suggestions,
	}
}
