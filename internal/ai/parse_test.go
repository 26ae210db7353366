package ai

import (
	"strings"
	"testing"
)

func TestParseEvaluation(t *testing.T) {
	raw := `{"overall": 0.75, "rubric": {"clarity": 0.8, "relevance": 0.7, "structure": 0.8, "correctness": 0.7, "depth": 0.75}, "notes": ["Clear explanation", "Mentioned edge cases"], "followup": null}`

	score, followup, err := ParseEvaluation(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Overall != 0.75 {
		t.Fatalf("expected overall 0.75, got %v", score.Overall)
	}
	if score.Rubric["clarity"] != 0.8 {
		t.Fatalf("expected clarity 0.8, got %v", score.Rubric["clarity"])
	}
	if len(score.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(score.Notes))
	}
	if followup != "" {
		t.Fatalf("expected no followup, got %q", followup)
	}
}

func TestParseEvaluationHandlesCodeFence(t *testing.T) {
	raw := "```json\n{\"overall\": \"0.6\", \"rubric\": {\"clarity\": \"0.5\"}, \"followup\": \"Can you give an example?\"}\n```"

	score, followup, err := ParseEvaluation(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Overall != 0.6 {
		t.Fatalf("expected overall 0.6, got %v", score.Overall)
	}
	if followup != "Can you give an example?" {
		t.Fatalf("unexpected followup: %q", followup)
	}
	// missing rubric keys are defaulted, not rejected
	if score.Rubric["depth"] != 0.5 {
		t.Fatalf("expected defaulted depth 0.5, got %v", score.Rubric["depth"])
	}
}

func TestParseEvaluationClampsOutOfRange(t *testing.T) {
	raw := `{"overall": 1.7, "rubric": {"clarity": -0.2}}`

	score, _, err := ParseEvaluation(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Overall != 1.0 {
		t.Fatalf("expected clamped overall 1.0, got %v", score.Overall)
	}
	if score.Rubric["clarity"] != 0.0 {
		t.Fatalf("expected clamped clarity 0.0, got %v", score.Rubric["clarity"])
	}
}

func TestParseEvaluationRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"not json at all", `{"rubric": {}}`, ""} {
		if _, _, err := ParseEvaluation(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseEvaluationCapsNotes(t *testing.T) {
	raw := `{"overall": 0.5, "notes": ["a", "b", "c", "d", "e", "f"]}`

	score, _, err := ParseEvaluation(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(score.Notes) != maxNotes {
		t.Fatalf("expected %d notes, got %d", maxNotes, len(score.Notes))
	}
}

func TestOutcomeString(t *testing.T) {
	if got := OutcomeTimeout.String(); got != "timeout" {
		t.Fatalf("unexpected outcome string: %s", got)
	}
	if got := strings.TrimSpace(OutcomeOK.String()); got != "ok" {
		t.Fatalf("unexpected outcome string: %s", got)
	}
}
