package evaluator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

func TestDrafterInitialDraft(t *testing.T) {
	var gotPrompt string
	client := api.CompletionFunc(func(_ context.Context, _, prompt string) (string, error) {
		gotPrompt = prompt
		return "  the protocol body  ", nil
	})

	st := api.NewSessionState("t1", "p1", "help with panic attacks", "adults only", 5)
	result, err := NewDrafter(client).GenerateDraft(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, "the protocol body", result.Content)
	assert.Equal(t, "Initial draft", result.ChangesSummary)
	assert.Contains(t, gotPrompt, "help with panic attacks")
	assert.Contains(t, gotPrompt, "adults only")
}

func TestDrafterRevisionIncludesFeedbackAndFlags(t *testing.T) {
	var gotPrompt string
	client := api.CompletionFunc(func(_ context.Context, _, prompt string) (string, error) {
		gotPrompt = prompt
		return "revised body\n\nChanges:\nsoftened the language", nil
	})

	st := evalState()
	st.FeedbackEntries = []api.FeedbackEntry{
		{Category: "clinical_tone", Score: 5, Feedback: "too clinical", Suggestions: []string{"warm it up"}},
	}
	st.SafetyFlags = []api.SafetyFlag{
		{ID: "f1", Severity: api.SeverityHigh, Category: api.FlagTriggeringLanguage, Details: "harsh phrasing", Location: "intro"},
		{ID: "f2", Severity: api.SeverityLow, Category: api.FlagInappropriateContent, Details: "resolved already", Resolved: true},
	}
	st.Empathy.Suggestions = []string{"use we instead of you"}

	result, err := NewDrafter(client).GenerateDraft(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, "revised body", result.Content)
	assert.Equal(t, "softened the language", result.ChangesSummary)

	assert.Contains(t, gotPrompt, "too clinical")
	assert.Contains(t, gotPrompt, "warm it up")
	assert.Contains(t, gotPrompt, "use we instead of you")
	assert.Contains(t, gotPrompt, "harsh phrasing")
	assert.NotContains(t, gotPrompt, "resolved already", "resolved flags stay out of the prompt")
}

func TestDrafterFeedbackWindow(t *testing.T) {
	var gotPrompt string
	client := api.CompletionFunc(func(_ context.Context, _, prompt string) (string, error) {
		gotPrompt = prompt
		return "revised", nil
	})

	st := evalState()
	for i := 0; i < 8; i++ {
		st.FeedbackEntries = append(st.FeedbackEntries, api.FeedbackEntry{
			Category: "overall",
			Feedback: strings.Repeat("x", 3) + string(rune('a'+i)),
		})
	}

	_, err := NewDrafter(client).GenerateDraft(context.Background(), st)
	require.NoError(t, err)

	assert.NotContains(t, gotPrompt, "xxxa", "oldest feedback falls out of the window")
	assert.Contains(t, gotPrompt, "xxxh")
}

func TestSplitChanges(t *testing.T) {
	content, summary := splitChanges("body text\n\n## Changes Made:\nadded resources")
	assert.Equal(t, "body text", content)
	assert.Equal(t, "added resources", summary)

	content, summary = splitChanges("just a body")
	assert.Equal(t, "just a body", content)
	assert.Equal(t, "Draft revised based on feedback", summary)

	_, summary = splitChanges("body\n\nChanges:\n" + strings.Repeat("c", 600))
	assert.Len(t, summary, 503, "long summaries truncate with ellipsis")
}
