package evaluator

import (
	"context"
	"strings"

	"github.com/kunalsaurav01/agentic-architect/pkg/api"
)

// StaticClient is a CompletionClient that returns canned responses,
// matched by a substring of the system prompt. It is deterministic and
// needs no network, which makes it useful in examples and tests.
type StaticClient struct {
	// Responses maps a distinctive fragment of a system prompt to the
	// canned response for that capability.
	Responses map[string]string

	// Default is returned when no fragment matches.
	Default string
}

var _ api.CompletionClient = (*StaticClient)(nil)

func (c *StaticClient) Complete(_ context.Context, system, _ string) (string, error) {
	for fragment, response := range c.Responses {
		if strings.Contains(system, fragment) {
			return response, nil
		}
	}
	return c.Default, nil
}

// NewStaticClient returns a StaticClient whose canned responses drive a
// session through one clean review cycle: a short draft, passing scores
// on every dimension, no safety flags, and a routing suggestion of
// human review.
func NewStaticClient() *StaticClient {
	return &StaticClient{
		Responses: map[string]string{
			roleDrafting: "# Managing Worry: A Guided Program\n\n" +
				"## Overview\nA structured six-session program using cognitive " +
				"and behavioral techniques to reduce excessive worry.\n\n" +
				"## Sessions\n1. Understanding worry\n2. Thought records\n" +
				"3. Cognitive restructuring\n4. Worry postponement\n" +
				"5. Behavioral experiments\n6. Relapse prevention\n\n" +
				"## Safety\nIf you experience thoughts of self-harm, contact " +
				"your local crisis line or emergency services.",
			roleClinical: `{
				"therapeutic_validity": {"score": 8, "feedback": "Techniques are evidence-based.", "suggestions": []},
				"structural_completeness": {"score": 8, "feedback": "Sessions progress logically.", "suggestions": []},
				"clinical_tone": {"score": 8, "feedback": "Professional and accessible.", "suggestions": []},
				"practical_utility": {"score": 8, "feedback": "Straightforward to deliver.", "suggestions": []},
				"overall_assessment": "Clinically sound program.",
				"priority_revisions": []
			}`,
			roleSafety: `{
				"safety_score": 9.0,
				"overall_assessment": "No significant safety concerns.",
				"flags": [],
				"required_additions": [],
				"resolved_flag_ids": [],
				"cleared_for_approval": true
			}`,
			roleEmpathy: `{
				"warmth": {"score": 8, "feedback": "Validating tone throughout.", "suggestions": []},
				"accessibility": {"score": 8, "feedback": "Plain language.", "reading_level": "8th grade", "suggestions": []},
				"safety_language": {"score": 8, "feedback": "Trauma-informed phrasing.", "suggestions": []},
				"cultural_sensitivity": {"score": 8, "feedback": "Inclusive.", "suggestions": []},
				"top_improvements": [],
				"strengths": ["Collaborative framing"]
			}`,
			roleAdvisor: `{
				"next_agent": "human_review",
				"reasoning": "All quality thresholds met with no blocking flags."
			}`,
		},
	}
}

// NewStaticCapabilities wires the built-in adapters to a StaticClient.
func NewStaticCapabilities() api.Capabilities {
	client := NewStaticClient()
	return NewCapabilities(client)
}

// NewCapabilities wires all built-in adapters to the given client.
func NewCapabilities(client api.CompletionClient) api.Capabilities {
	return api.Capabilities{
		Generator: NewDrafter(client),
		Clinical:  NewClinical(client),
		Safety:    NewSafety(client),
		Empathy:   NewEmpathy(client),
		Advisor:   NewAdvisor(client),
	}
}
