package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// rubric dimensions every provider is asked to fill. Missing dimensions are
// defaulted to 0.5 rather than rejected, since models drop keys routinely.
var rubricKeys = []string{"clarity", "relevance", "structure", "correctness", "depth"}

const maxNotes = 4

// ParseEvaluation turns a raw model response into a Score and an optional
// follow-up question. Models wrap JSON in markdown fences and return numbers
// as strings often enough that both are handled here.
func ParseEvaluation(raw string) (*Score, string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, "", fmt.Errorf("parse scorer response: %w", err)
	}

	overall := coerceFloat(data["overall"])
	if math.IsNaN(overall) {
		return nil, "", fmt.Errorf("scorer response has no usable overall score")
	}
	overall = clamp01(overall)

	rubric := make(map[string]float64, len(rubricKeys))
	rawRubric, _ := data["rubric"].(map[string]any)
	for _, key := range rubricKeys {
		v := coerceFloat(rawRubric[key])
		if math.IsNaN(v) {
			v = 0.5
		}
		rubric[key] = clamp01(v)
	}

	var notes []string
	if rawNotes, ok := data["notes"].([]any); ok {
		for _, n := range rawNotes {
			note := strings.TrimSpace(coerceString(n))
			if note == "" {
				continue
			}
			notes = append(notes, note)
			if len(notes) == maxNotes {
				break
			}
		}
	}

	followup := strings.TrimSpace(coerceString(data["followup"]))
	if strings.EqualFold(followup, "null") || strings.EqualFold(followup, "none") {
		followup = ""
	}

	return &Score{Overall: overall, Rubric: rubric, Notes: notes}, followup, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case fmt.Stringer:
		return val.String()
	default:
		return ""
	}
}
