package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

const roleDrafting = "protocol designer"

const draftingSystem = `You are an expert clinical psychologist and CBT protocol designer. You create evidence-based, therapeutically sound protocols.

Principles: evidence-based recommendations, patient-centered adaptability, clear structure, safety first, gradual progression, measurable outcomes.

Every protocol includes: title and overview, target population, prerequisites, session structure, techniques and exercises, homework, progress indicators, adaptations, contraindications, and clinical notes.

Use warm professional language, define any jargon, never provide medication advice, always include crisis resources, and emphasize professional supervision.

When revising, carefully address all feedback while maintaining therapeutic integrity.`

// feedbackWindow limits how many recent feedback entries a revision
// prompt includes.
const feedbackWindow = 5

var changesHeading = regexp.MustCompile(`(?is)\n(?:#{2,3} )?(?:changes|summary of changes|revisions|changes made):?\s*\n`)

// Drafter generates and revises drafts from accumulated feedback.
type Drafter struct {
	client api.CompletionClient
}

var _ api.Generator = (*Drafter)(nil)

func NewDrafter(client api.CompletionClient) *Drafter {
	return &Drafter{client: client}
}

func (d *Drafter) GenerateDraft(ctx context.Context, state *api.SessionState) (*api.DraftResult, error) {
	if state.CurrentDraft == "" {
		return d.initialDraft(ctx, state)
	}
	return d.reviseDraft(ctx, state)
}

func (d *Drafter) initialDraft(ctx context.Context, state *api.SessionState) (*api.DraftResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a comprehensive protocol based on the following request.\n\n## Request\n%s\n", state.UserIntent)
	if state.AdditionalContext != "" {
		fmt.Fprintf(&b, "\n## Additional Context\n%s\n", state.AdditionalContext)
	}
	b.WriteString("\nProvide the complete protocol now:")

	content, err := d.client.Complete(ctx, draftingSystem, b.String())
	if err != nil {
		return nil, err
	}
	return &api.DraftResult{
		Content:        strings.TrimSpace(content),
		ChangesSummary: "Initial draft",
	}, nil
}

func (d *Drafter) reviseDraft(ctx context.Context, state *api.SessionState) (*api.DraftResult, error) {
	prompt := fmt.Sprintf(`Revise the following draft based on the feedback received.

## Current Draft (version %d)
%s

## Feedback to Address
%s

## Open Safety Flags
%s

Address safety concerns first, then clinical validity, then language warmth.
Provide the revised draft, then a section headed "Changes:" with a brief summary of what changed.`,
		len(state.DraftVersions), state.CurrentDraft,
		compileFeedback(state), formatOpenFlags(state))

	raw, err := d.client.Complete(ctx, draftingSystem, prompt)
	if err != nil {
		return nil, err
	}

	content, summary := splitChanges(raw)
	return &api.DraftResult{Content: content, ChangesSummary: summary}, nil
}

// compileFeedback gathers the recent reviewer feedback into prompt text.
func compileFeedback(state *api.SessionState) string {
	var parts []string

	entries := state.FeedbackEntries
	if len(entries) > feedbackWindow {
		entries = entries[len(entries)-feedbackWindow:]
	}
	for _, fb := range entries {
		parts = append(parts, fmt.Sprintf("- [%s] (%.1f/10) %s", fb.Category, fb.Score, fb.Feedback))
		for _, s := range fb.Suggestions {
			parts = append(parts, "  * "+s)
		}
	}

	for _, s := range state.Empathy.Suggestions {
		parts = append(parts, "- Language: "+s)
	}

	if len(parts) == 0 {
		return "No specific feedback to address."
	}
	return strings.Join(parts, "\n")
}

func formatOpenFlags(state *api.SessionState) string {
	open := state.UnresolvedFlags(api.SeverityLow)
	if len(open) == 0 {
		return "No active safety flags."
	}
	var parts []string
	for _, f := range open {
		line := fmt.Sprintf("- [%s] %s: %s", strings.ToUpper(string(f.Severity)), f.Category, f.Details)
		if f.Location != "" {
			line += " (location: " + f.Location + ")"
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}

// splitChanges separates the revised draft body from the trailing
// changes summary, when the response includes one.
func splitChanges(raw string) (content, summary string) {
	loc := changesHeading.FindStringIndex(raw)
	if loc == nil {
		return strings.TrimSpace(raw), "Draft revised based on feedback"
	}
	content = strings.TrimSpace(raw[:loc[0]])
	summary = strings.TrimSpace(raw[loc[1]:])
	if summary == "" {
		summary = "Draft revised based on feedback"
	}
	if len(summary) > 500 {
		summary = summary[:500] + "..."
	}
	return content, summary
}
