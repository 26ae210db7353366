package ai

import "context"

// Outcome classifies the result of a scoring call into a closed set so the
// interview engine's retry and fallback logic never inspects raw errors.
type Outcome int

const (
	// OutcomeOK means Score is populated and Followup may be set.
	OutcomeOK Outcome = iota
	// OutcomeTimeout means the provider did not answer within the deadline.
	OutcomeTimeout
	// OutcomeMalformed means the provider answered but the response could
	// not be parsed into a Score.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Score is a rubric evaluation of a single answer. All values are in [0,1].
type Score struct {
	Overall float64
	Rubric  map[string]float64
	Notes   []string
}

// Request carries everything a provider needs to evaluate one answer.
type Request struct {
	Question     string
	QuestionType string
	Topics       []string
	Answer       string
	Code         string
	// Simplified asks the provider for a reduced prompt. Set on the single
	// retry after a failed first call.
	Simplified bool
}

// Evaluation is the provider's verdict. Score is nil unless Outcome is
// OutcomeOK. Followup holds a suggested follow-up question verbatim; empty
// means the answer needs none.
type Evaluation struct {
	Outcome  Outcome
	Score    *Score
	Followup string
}

// Scorer evaluates interview answers. Implementations must honor ctx
// cancellation and report failures through Outcome rather than panicking or
// blocking indefinitely.
type Scorer interface {
	Evaluate(ctx context.Context, req Request) Evaluation
}
