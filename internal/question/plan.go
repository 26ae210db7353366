package question

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyPlan is returned when the source cannot supply a single question
// for the requested profile. A short plan is fine; an empty one is not.
var ErrEmptyPlan = errors.New("interview plan has no questions")

// ErrInvalidCounts is returned when a requested section count is negative.
// Like ErrEmptyPlan it is a caller input error, not a server fault.
var ErrInvalidCounts = errors.New("requested question counts must be non-negative")

// DefaultTopicOverlap is the maximum Jaccard similarity allowed between the
// topic sets of adjacent plan slots before the builder reorders.
const DefaultTopicOverlap = 0.7

// Plan is an ordered, immutable sequence of question slots for one session.
// Built once at session start and never recomputed.
type Plan struct {
	Slots []Question `json:"slots"`
}

func (p Plan) Total() int { return len(p.Slots) }

// At returns the question at the given slot.
func (p Plan) At(slot int) (Question, bool) {
	if slot < 0 || slot >= len(p.Slots) {
		return Question{}, false
	}
	return p.Slots[slot], true
}

// Builder assembles session plans from a question source.
type Builder struct {
	source       Source
	topicOverlap float64
}

func NewBuilder(source Source) *Builder {
	return &Builder{source: source, topicOverlap: DefaultTopicOverlap}
}

// WithTopicOverlap overrides the adjacency diversity threshold. Values
// outside (0,1] fall back to the default.
func (b *Builder) WithTopicOverlap(threshold float64) *Builder {
	if threshold > 0 && threshold <= 1 {
		b.topicOverlap = threshold
	}
	return b
}

// Build produces the plan for one session: open questions first, then code
// questions, each section in source ranking order, deduplicated by ID, with
// adjacent slots reordered when their topic sets overlap too much. The
// builder under-fills rather than failing when the source runs short, but a
// plan with zero slots is an error.
func (b *Builder) Build(ctx context.Context, profile Profile, counts Counts) (Plan, error) {
	if counts.Open < 0 || counts.Code < 0 {
		return Plan{}, fmt.Errorf("%w: open=%d code=%d", ErrInvalidCounts, counts.Open, counts.Code)
	}
	if counts.Total() == 0 {
		return Plan{}, ErrEmptyPlan
	}

	var slots []Question
	seen := make(map[string]struct{})

	for _, section := range []struct {
		typ   Type
		count int
	}{
		{TypeOpen, counts.Open},
		{TypeCode, counts.Code},
	} {
		if section.count == 0 {
			continue
		}

		// Over-fetch so the diversity pass has alternatives to pick from.
		candidates, err := b.source.Select(ctx, profile, section.typ, section.count*3)
		if err != nil {
			return Plan{}, fmt.Errorf("selecting %s questions: %w", section.typ, err)
		}

		picked := b.pickDiverse(candidates, section.count, seen, slots)
		slots = append(slots, picked...)
	}

	if len(slots) == 0 {
		return Plan{}, ErrEmptyPlan
	}

	return Plan{Slots: slots}, nil
}

// pickDiverse walks the candidates in ranking order, skipping duplicates and
// deferring a candidate whose topics overlap the previous slot beyond the
// threshold as long as an alternative remains. Ties break in favor of the
// original source order, which keeps plan construction deterministic.
func (b *Builder) pickDiverse(candidates []Question, want int, seen map[string]struct{}, existing []Question) []Question {
	var picked []Question
	deferred := make([]Question, 0, len(candidates))

	prevTopics := func() []string {
		if len(picked) > 0 {
			return picked[len(picked)-1].Topics
		}
		if len(existing) > 0 {
			return existing[len(existing)-1].Topics
		}
		return nil
	}

	for _, q := range candidates {
		if len(picked) == want {
			break
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		if jaccard(q.Topics, prevTopics()) > b.topicOverlap {
			deferred = append(deferred, q)
			continue
		}
		picked = append(picked, q)
		seen[q.ID] = struct{}{}
	}

	// Under-filled and alternatives were skipped: take deferred ones in
	// their original order. A worse-ordered plan beats a shorter one.
	for _, q := range deferred {
		if len(picked) == want {
			break
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		picked = append(picked, q)
		seen[q.ID] = struct{}{}
	}

	return picked
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}

	intersection := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
