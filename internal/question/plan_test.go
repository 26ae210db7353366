package question

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubSource struct {
	open []Question
	code []Question
	err  error
}

func (s *stubSource) Select(_ context.Context, _ Profile, typ Type, limit int) ([]Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	pool := s.open
	if typ == TypeCode {
		pool = s.code
	}
	if limit < len(pool) {
		return pool[:limit], nil
	}
	return pool, nil
}

func openQ(id string, topics ...string) Question {
	return Question{ID: id, Text: "open " + id, Type: TypeOpen, Topics: topics}
}

func codeQ(id string, topics ...string) Question {
	return Question{ID: id, Text: "code " + id, Type: TypeCode, Topics: topics, Difficulty: DifficultyMedium}
}

func TestBuildPlanBasic(t *testing.T) {
	src := &stubSource{
		open: []Question{openQ("o1", "api"), openQ("o2", "testing"), openQ("o3", "ops")},
		code: []Question{codeQ("c1", "arrays"), codeQ("c2", "graphs")},
	}

	plan, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 2, Code: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Total() != 3 {
		t.Fatalf("expected 3 slots, got %d", plan.Total())
	}
	if plan.Slots[0].Type != TypeOpen || plan.Slots[2].Type != TypeCode {
		t.Fatalf("expected open section before code section: %+v", plan.Slots)
	}
}

func TestBuildPlanNoDuplicateIDs(t *testing.T) {
	shared := openQ("dup", "api")
	src := &stubSource{
		open: []Question{shared, openQ("o2", "db")},
		code: []Question{{ID: "dup", Text: "same id", Type: TypeCode}, codeQ("c2", "graphs")},
	}

	plan, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 2, Code: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, q := range plan.Slots {
		if seen[q.ID] {
			t.Fatalf("duplicate question id %q in plan", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestBuildPlanUnderFill(t *testing.T) {
	src := &stubSource{open: []Question{openQ("o1", "api")}}

	plan, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 4, Code: 0})
	if err != nil {
		t.Fatalf("under-filled plan must not fail: %v", err)
	}
	if plan.Total() != 1 {
		t.Fatalf("expected 1 slot, got %d", plan.Total())
	}
}

func TestBuildPlanEmpty(t *testing.T) {
	src := &stubSource{}

	_, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 3, Code: 2})
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestBuildPlanZeroRequested(t *testing.T) {
	src := &stubSource{open: []Question{openQ("o1")}}

	if _, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{}); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan for zero counts, got %v", err)
	}
}

func TestBuildPlanNegativeCounts(t *testing.T) {
	src := &stubSource{open: []Question{openQ("o1")}}

	if _, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: -1, Code: 2}); !errors.Is(err, ErrInvalidCounts) {
		t.Fatalf("expected ErrInvalidCounts, got %v", err)
	}
}

func TestBuildPlanSourceError(t *testing.T) {
	src := &stubSource{err: fmt.Errorf("bank unavailable")}

	if _, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 1}); err == nil {
		t.Fatalf("expected propagated source error")
	}
}

func TestBuildPlanAdjacencyDiversity(t *testing.T) {
	// o1 and o2 share identical topic sets; o3 is distinct. The builder
	// should interleave o3 between them instead of placing o2 second.
	src := &stubSource{
		open: []Question{
			openQ("o1", "kubernetes", "deploy"),
			openQ("o2", "kubernetes", "deploy"),
			openQ("o3", "sql"),
		},
	}

	plan, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Total() != 3 {
		t.Fatalf("expected 3 slots, got %d", plan.Total())
	}
	if plan.Slots[1].ID == "o2" {
		t.Fatalf("expected diversity pass to defer o2, got order %v", ids(plan))
	}
}

func TestBuildPlanDiversityNeverShrinksPlan(t *testing.T) {
	// Every candidate shares topics; the threshold cannot be honored, but
	// the plan must still fill.
	src := &stubSource{
		open: []Question{
			openQ("o1", "go"),
			openQ("o2", "go"),
			openQ("o3", "go"),
		},
	}

	plan, err := NewBuilder(src).Build(context.Background(), Profile{}, Counts{Open: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Total() != 3 {
		t.Fatalf("expected full plan despite overlap, got %d slots", plan.Total())
	}
}

func TestMatchScore(t *testing.T) {
	weights := map[string]float64{"kubernetes": 1.0, "sql": 0.6}

	cases := []struct {
		name   string
		topics []string
		want   float64
	}{
		{name: "exact", topics: []string{"kubernetes"}, want: 1.0},
		{name: "partial", topics: []string{"kubernetes operators"}, want: 0.5},
		{name: "no weights hit", topics: []string{"frontend"}, want: 0.0},
		{name: "empty topics", topics: nil, want: 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchScore(tc.topics, weights); got != tc.want {
				t.Fatalf("MatchScore(%v) = %v, want %v", tc.topics, got, tc.want)
			}
		})
	}
}

func TestMatchScoreDeterministic(t *testing.T) {
	// "golang" partially matches several keys; the smallest sorted key
	// ("ang") must win every time regardless of map iteration order.
	weights := map[string]float64{"go": 1.0, "lang": 0.2, "gol": 0.6, "ang": 0.4}

	for i := 0; i < 100; i++ {
		if got := MatchScore([]string{"golang"}, weights); got != 0.2 {
			t.Fatalf("run %d: MatchScore = %v, want 0.2", i, got)
		}
	}
}

func ids(p Plan) []string {
	out := make([]string, 0, len(p.Slots))
	for _, q := range p.Slots {
		out = append(out, q.ID)
	}
	return out
}
