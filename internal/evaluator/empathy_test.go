package evaluator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpathyWeightedOverall(t *testing.T) {
	raw := `{
		"warmth": {"score": 8, "feedback": "warm", "suggestions": []},
		"accessibility": {"score": 7, "feedback": "", "reading_level": "9th grade", "suggestions": []},
		"safety_language": {"score": 8, "feedback": "", "suggestions": []},
		"cultural_sensitivity": {"score": 6, "feedback": "", "suggestions": []}
	}`

	result, err := NewEmpathy(fixedClient(raw)).Evaluate(context.Background(), evalState())
	require.NoError(t, err)
	require.NotNil(t, result.Empathy)

	// 8*.30 + 7*.30 + 8*.25 + 6*.15 = 7.4
	assert.Equal(t, 7.4, result.Empathy.Overall)
	assert.Equal(t, result.Empathy.Overall, result.Score)
	assert.Equal(t, "9th grade", result.Empathy.ReadabilityGrade)
	assert.Equal(t, 8.0, result.Dimensions["warmth"])
}

func TestEmpathySuggestionAggregationCapped(t *testing.T) {
	raw := `{
		"warmth": {"score": 6, "suggestions": ["s1", "s2", "s3", "s4"]},
		"accessibility": {"score": 6, "jargon_found": ["catastrophizing", "cognitive distortion"], "suggestions": ["s5"]},
		"safety_language": {"score": 6, "concerning_phrases": ["you must"], "suggestions": ["s6", "s7"]},
		"cultural_sensitivity": {"score": 6, "suggestions": ["s8"]},
		"top_improvements": [
			{"original": "you will feel", "suggested": "you might feel", "reason": "less absolute"},
			{"original": "problem", "suggested": "challenge", "reason": "less blame"}
		]
	}`

	result, err := NewEmpathy(fixedClient(raw)).Evaluate(context.Background(), evalState())
	require.NoError(t, err)

	assert.Len(t, result.Empathy.Suggestions, maxEmpathySuggestions)
	assert.Contains(t, result.Empathy.Suggestions, "Consider simplifying: catastrophizing")

	found := false
	for _, s := range result.Empathy.Suggestions {
		if strings.Contains(s, "Review phrase: you must") {
			found = true
		}
	}
	assert.True(t, found, "concerning phrases surface as suggestions")
}

func TestEmpathyFallbackOnGarbage(t *testing.T) {
	result, err := NewEmpathy(fixedClient("plain prose, no json")).Evaluate(context.Background(), evalState())
	require.NoError(t, err)

	// Fallback dimensions 6/6/7/7 collapse to 6.4.
	assert.Equal(t, 6.4, result.Empathy.Overall)
	assert.Equal(t, 6.0, result.Empathy.Warmth)
	assert.Equal(t, 7.0, result.Empathy.SafetyLanguage)
	assert.Equal(t, "Unknown", result.Empathy.ReadabilityGrade)
}
