package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

func evalState() *api.SessionState {
	st := api.NewSessionState("t1", "p1", "test intent", "", 5)
	st.CurrentDraft = "a draft under review"
	st.DraftVersions = []api.DraftVersion{{Version: 1, Content: st.CurrentDraft}}
	return st
}

func fixedClient(response string) api.CompletionClient {
	return api.CompletionFunc(func(_ context.Context, _, _ string) (string, error) {
		return response, nil
	})
}

func TestClinicalScoringPinned(t *testing.T) {
	scoring := DefaultClinicalScoring()

	// Weighted average 7.95 scaled by 10: the historical reporting
	// scale.
	got := scoring.Score(map[string]float64{
		"therapeutic_validity":    8,
		"structural_completeness": 7,
		"clinical_tone":           9,
		"practical_utility":       8,
	})
	assert.Equal(t, 79.5, got)

	// Missing dimensions re-normalize over the weights present.
	partial := scoring.Score(map[string]float64{
		"therapeutic_validity":    8,
		"structural_completeness": 6,
	})
	// (8*.35 + 6*.25) / .60 * 10 = 71.7 (one decimal)
	assert.InDelta(t, 71.7, partial, 0.05)

	assert.Equal(t, 5.0, scoring.Score(nil), "no dimensions falls back to the middle score")
}

func TestClinicalScoringScaleFactorOne(t *testing.T) {
	scoring := DefaultClinicalScoring()
	scoring.ScaleFactor = 1

	got := scoring.Score(map[string]float64{
		"therapeutic_validity":    8,
		"structural_completeness": 7,
		"clinical_tone":           9,
		"practical_utility":       8,
	})
	assert.InDelta(t, 8.0, got, 0.01, "plain weighted average on the 0-10 scale")
}

func TestClinicalEvaluateParsesResponse(t *testing.T) {
	raw := `Here is my evaluation:
{
  "therapeutic_validity": {"score": 9, "feedback": "solid", "suggestions": ["cite sources"]},
  "structural_completeness": {"score": 8, "feedback": "", "suggestions": []},
  "clinical_tone": {"score": 8, "feedback": "", "suggestions": []},
  "practical_utility": {"score": 7, "feedback": "", "suggestions": []},
  "overall_assessment": "Good overall",
  "priority_revisions": ["add contraindications"]
}
Hope that helps.`

	result, err := NewClinical(fixedClient(raw)).Evaluate(context.Background(), evalState())
	require.NoError(t, err)

	assert.Equal(t, 9.0, result.Dimensions["therapeutic_validity"])
	assert.Equal(t, "Good overall", result.Feedback)
	assert.Contains(t, result.Suggestions, "cite sources")
	assert.Contains(t, result.Suggestions, "add contraindications")
	// (9*.35 + 8*.25 + 8*.20 + 7*.20) * 10 = 81.5
	assert.Equal(t, 81.5, result.Score)
}

func TestClinicalEvaluateFallbackOnGarbage(t *testing.T) {
	result, err := NewClinical(fixedClient("not json at all")).Evaluate(context.Background(), evalState())
	require.NoError(t, err)

	assert.Equal(t, 6.0, result.Dimensions["therapeutic_validity"])
	assert.Equal(t, 6.0, result.Dimensions["structural_completeness"])
	assert.Equal(t, 7.0, result.Dimensions["clinical_tone"])
	assert.Equal(t, 7.0, result.Dimensions["practical_utility"])
	// (6*.35 + 6*.25 + 7*.20 + 7*.20) * 10 = 64.0
	assert.Equal(t, 64.0, result.Score)
	assert.Empty(t, result.Suggestions)
}

func TestClinicalEvaluatePropagatesClientError(t *testing.T) {
	boom := errors.New("backend down")
	client := api.CompletionFunc(func(context.Context, string, string) (string, error) {
		return "", boom
	})

	_, err := NewClinical(client).Evaluate(context.Background(), evalState())
	assert.ErrorIs(t, err, boom)
}
