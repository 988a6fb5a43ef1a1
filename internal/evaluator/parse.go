// Package evaluator implements the model-backed review capabilities:
// drafting, clinical review, safety review, empathy review and the
// supervisor's routing advisor. Each evaluator talks to a completion
// client, parses the structured response, and falls back to
// conservative defaults when the response cannot be parsed.
package evaluator

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSON = errors.New("no JSON object in response")

// extractJSON pulls the outermost JSON object out of a completion
// response and unmarshals it into v. Models sometimes wrap the object
// in prose or markdown fences, so we scan from the first '{' to the
// last '}'.
func extractJSON(raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v)
}

// clamp bounds a score to the [0, 10] scale.
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// round1 rounds to one decimal place, matching how scores are
// reported throughout the session state.
func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
