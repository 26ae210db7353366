package question

import (
	"context"
	"sort"
	"strings"
)

// Type distinguishes spoken answers from coding exercises.
type Type string

const (
	TypeOpen Type = "open"
	TypeCode Type = "code"
)

// Difficulty levels as stored in the question bank.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is a single bank entry. Immutable once issued into a plan.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Type       Type     `json:"type"`
	Topics     []string `json:"topics"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// Profile describes the role an interview targets. Weights map lowercase
// topic names to relative importance and drive candidate ranking.
type Profile struct {
	UserID    string             `json:"user_id"`
	RoleTitle string             `json:"role_title"`
	Weights   map[string]float64 `json:"weights"`
}

// Counts is the requested split of a session plan.
type Counts struct {
	Open int `json:"open"`
	Code int `json:"code"`
}

func (c Counts) Total() int { return c.Open + c.Code }

// Source provides ranked candidate questions for plan construction. It may
// return fewer than requested and must not return duplicate IDs. Candidates
// arrive in ranking order, best first.
type Source interface {
	Select(ctx context.Context, profile Profile, typ Type, limit int) ([]Question, error)
}

// MatchScore ranks a question's topics against the profile weights. Exact
// topic hits contribute their full weight, substring hits half. The result
// is normalized by topic count so long topic lists do not dominate. A fixed
// input always yields the same score: partial matches are resolved against
// the weight keys in sorted order, never map iteration order.
func MatchScore(topics []string, weights map[string]float64) float64 {
	if len(topics) == 0 || len(weights) == 0 {
		return 0.5
	}

	keys := make([]string, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var score float64
	for _, topic := range topics {
		lower := strings.ToLower(strings.TrimSpace(topic))
		if w, ok := weights[lower]; ok {
			score += w
			continue
		}
		for _, weighted := range keys {
			if strings.Contains(lower, weighted) || strings.Contains(weighted, lower) {
				score += weights[weighted] * 0.5
				break
			}
		}
	}

	return score / float64(len(topics))
}
