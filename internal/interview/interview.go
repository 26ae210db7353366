// Package interview implements the session state machine that sequences a
// mock interview: question progression, follow-up handling, attempt caps and
// termination. All session mutation funnels through the Engine.
package interview

import (
	"context"
	"errors"
	"time"

	"github.com/prepair-dev/prepair/internal/question"
)

// Status is the session lifecycle state. Active is the sole initial state;
// the other two are terminal.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusEndedEarly Status = "ended_early"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusEndedEarly
}

var (
	// ErrSessionNotFound means the session id is unknown to the store.
	ErrSessionNotFound = errors.New("interview session not found")
	// ErrSessionNotActive means the session reached a terminal state and
	// accepts no further answers.
	ErrSessionNotActive = errors.New("interview session is not active")
	// ErrSessionBusy means another submission for the same session is still
	// in flight. The caller decides whether to retry.
	ErrSessionBusy = errors.New("interview session has a submission in flight")
)

// Session is the sole mutable entity of the core. Everything except Plan is
// mutated only by the Engine.
type Session struct {
	ID      string
	UserID  string
	Profile question.Profile
	Plan    question.Plan

	// SlotIndex is 0-based; equal to Plan.Total() only when completed.
	SlotIndex int
	// Attempt counts submissions against the current slot, starting at 1.
	Attempt int
	// PendingFollowup holds the scorer-suggested follow-up text the client
	// was shown; empty unless Attempt > 1.
	PendingFollowup string

	Status    Status
	CreatedAt time.Time
	// LastActivityAt advances on every accepted submission. The janitor
	// compares it, not CreatedAt, against the idle cutoff so a long but
	// live interview is never reaped.
	LastActivityAt time.Time
	EndedAt        *time.Time
	Summary        *Summary
}

// CurrentQuestion returns the plan question for the active slot.
func (s *Session) CurrentQuestion() (question.Question, bool) {
	return s.Plan.At(s.SlotIndex)
}

// Turn is the append-only record of one question/answer/score exchange.
type Turn struct {
	ID        string
	SessionID string
	SlotIndex int
	Attempt   int

	QuestionID string
	// QuestionText is frozen at ask-time: the follow-up text on attempts
	// beyond the first, the plan question otherwise.
	QuestionText string

	Answer  string
	Code    string
	Skipped bool

	// Overall is nil for skipped and ungraded turns.
	Overall *float64
	Rubric  map[string]float64
	Notes   []string
	// ScoreOutcome records how the score was obtained: "ok", "skipped" or
	// the failure kind that led to an ungraded turn.
	ScoreOutcome string

	// Followup is the scorer suggestion produced by this turn, if any.
	Followup string

	CreatedAt time.Time
}

// Summary aggregates a finished session for reporting.
type Summary struct {
	Turns        int     `json:"turns"`
	Graded       int     `json:"graded"`
	AverageScore float64 `json:"average_score"`
}

// Store is the persistence contract the engine needs. Implementations must
// keep CommitTurn atomic: the turn append and the session field update are
// applied together or not at all, and the commit must fail with
// ErrSessionNotActive when the stored session is already terminal.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	CommitTurn(ctx context.Context, s *Session, turn *Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]Session, error)
	// ListStaleSessionIDs returns ids of active sessions with no activity
	// since the cutoff. Consumed by the stale-session janitor.
	ListStaleSessionIDs(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Summarize folds turns into a Summary. Ungraded and skipped turns count
// toward Turns but not toward the average.
func Summarize(turns []Turn) *Summary {
	sum := &Summary{Turns: len(turns)}

	var total float64
	for _, t := range turns {
		if t.Overall == nil {
			continue
		}
		sum.Graded++
		total += *t.Overall
	}

	if sum.Graded > 0 {
		sum.AverageScore = total / float64(sum.Graded)
	}
	return sum
}
