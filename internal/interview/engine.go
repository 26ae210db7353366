package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepair-dev/prepair/internal/ai"
	"github.com/prepair-dev/prepair/internal/question"
	"go.uber.org/zap"
)

// Config tunes the state machine. Zero values fall back to defaults.
type Config struct {
	// MaxAttempts caps submissions per slot, follow-ups included.
	MaxAttempts int
	// ScorerTimeout bounds each scorer call. A submission blocks at most
	// twice this long before falling back to an ungraded turn.
	ScorerTimeout time.Duration
}

const (
	defaultMaxAttempts   = 3
	defaultScorerTimeout = 15 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.ScorerTimeout <= 0 {
		c.ScorerTimeout = defaultScorerTimeout
	}
	return c
}

// Engine drives interview sessions. The scorer is an injected capability so
// the retry and fallback paths are testable with a fake.
type Engine struct {
	store   Store
	scorer  ai.Scorer
	builder *question.Builder
	cfg     Config
	log     *zap.Logger

	// guards holds one mutex per live session. Submit uses TryLock so a
	// concurrent submission is rejected, never queued.
	guards sync.Map
}

func NewEngine(store Store, scorer ai.Scorer, builder *question.Builder, cfg Config, log *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		scorer:  scorer,
		builder: builder,
		cfg:     cfg.withDefaults(),
		log:     log,
	}
}

// StartResult is returned to the transport when a session begins.
type StartResult struct {
	SessionID      string
	FirstQuestion  question.Question
	TotalQuestions int
}

// Progress locates the client inside the plan.
type Progress struct {
	SlotIndex int
	Total     int
}

// SubmitRequest is one client answer. Skip advances without scoring.
type SubmitRequest struct {
	Answer string
	Code   string
	Skip   bool
}

// NextResult tells the client what to do next: answer a follow-up, move to
// the next question, or stop.
type NextResult struct {
	NextQuestion     *question.Question
	FollowupQuestion string
	IsDone           bool
	Progress         Progress
}

// Snapshot is the read-only view served by Get.
type Snapshot struct {
	Session *Session
	Turns   []Turn
}

// HistoryEntry summarizes one past session for the history listing.
type HistoryEntry struct {
	SessionID    string
	RoleTitle    string
	Status       Status
	CreatedAt    time.Time
	EndedAt      *time.Time
	Answered     int
	AverageScore float64
}

// Start builds the plan and creates the session in the active state. The
// one-time QuestionSource call happens here, synchronously, so an empty
// plan fails the start request instead of producing a dead session.
func (e *Engine) Start(ctx context.Context, profile question.Profile, counts question.Counts) (*StartResult, error) {
	plan, err := e.builder.Build(ctx, profile, counts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		ID:             uuid.NewString(),
		UserID:         profile.UserID,
		Profile:        profile,
		Plan:           plan,
		SlotIndex:      0,
		Attempt:        1,
		Status:         StatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := e.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	first, _ := plan.At(0)
	e.log.Info("interview session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
		zap.Int("total_questions", plan.Total()),
	)

	return &StartResult{
		SessionID:      session.ID,
		FirstQuestion:  first,
		TotalQuestions: plan.Total(),
	}, nil
}

// Submit applies one answer to the session. At most one Submit may be in
// flight per session; a concurrent call gets ErrSessionBusy. The scorer is
// consulted unless the client skips; scorer failure degrades to an ungraded
// turn and the session always makes forward progress.
func (e *Engine) Submit(ctx context.Context, sessionID string, req SubmitRequest) (*NextResult, error) {
	guard := e.guard(sessionID)
	if !guard.TryLock() {
		return nil, ErrSessionBusy
	}
	defer guard.Unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusActive {
		return nil, ErrSessionNotActive
	}

	current, ok := session.CurrentQuestion()
	if !ok {
		return nil, fmt.Errorf("session %s slot %d outside plan of %d", sessionID, session.SlotIndex, session.Plan.Total())
	}

	shownText := current.Text
	if session.Attempt > 1 && session.PendingFollowup != "" {
		shownText = session.PendingFollowup
	}

	turn := &Turn{
		ID:           uuid.NewString(),
		SessionID:    session.ID,
		SlotIndex:    session.SlotIndex,
		Attempt:      session.Attempt,
		QuestionID:   current.ID,
		QuestionText: shownText,
		Answer:       req.Answer,
		Code:         req.Code,
		CreatedAt:    time.Now().UTC(),
	}

	askFollowup := false
	if req.Skip {
		turn.Skipped = true
		turn.ScoreOutcome = "skipped"
	} else {
		eval := e.score(ctx, ai.Request{
			Question:     shownText,
			QuestionType: string(current.Type),
			Topics:       current.Topics,
			Answer:       req.Answer,
			Code:         req.Code,
		})
		turn.ScoreOutcome = eval.Outcome.String()
		if eval.Outcome == ai.OutcomeOK {
			overall := eval.Score.Overall
			turn.Overall = &overall
			turn.Rubric = eval.Score.Rubric
			turn.Notes = eval.Score.Notes
			turn.Followup = strings.TrimSpace(eval.Followup)
			askFollowup = turn.Followup != "" && session.Attempt < e.cfg.MaxAttempts
		}
		// A failed scorer call is treated as "no follow-up": the session
		// must never stall waiting on an unavailable oracle.
	}

	session.LastActivityAt = turn.CreatedAt

	if askFollowup {
		session.Attempt++
		session.PendingFollowup = turn.Followup
	} else {
		session.SlotIndex++
		session.Attempt = 1
		session.PendingFollowup = ""
	}

	done := session.SlotIndex == session.Plan.Total()
	if done {
		now := time.Now().UTC()
		session.Status = StatusCompleted
		session.EndedAt = &now

		previous, err := e.store.ListTurns(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("listing turns for summary: %w", err)
		}
		session.Summary = Summarize(append(previous, *turn))
	}

	// Single atomic commit: turn append + session update. The store
	// re-checks status so a turn racing a concurrent End is discarded.
	if err := e.store.CommitTurn(ctx, session, turn); err != nil {
		return nil, err
	}

	e.log.Info("answer processed",
		zap.String("session_id", session.ID),
		zap.Int("slot", turn.SlotIndex),
		zap.Int("attempt", turn.Attempt),
		zap.String("score_outcome", turn.ScoreOutcome),
		zap.Bool("followup", askFollowup),
		zap.Bool("done", done),
	)

	result := &NextResult{
		IsDone:   done,
		Progress: Progress{SlotIndex: session.SlotIndex, Total: session.Plan.Total()},
	}

	switch {
	case askFollowup:
		result.FollowupQuestion = session.PendingFollowup
	case !done:
		next, _ := session.Plan.At(session.SlotIndex)
		result.NextQuestion = &next
	default:
		e.guards.Delete(session.ID)
	}

	return result, nil
}

// End terminates the session early. It is idempotent and must not depend on
// the scorer: it is the escape hatch for abandoned sessions. Taking the
// per-session lock (blocking, unlike Submit) serializes it with any
// submission still in flight; terminal status wins.
func (e *Engine) End(ctx context.Context, sessionID string) error {
	guard := e.guard(sessionID)
	guard.Lock()
	defer guard.Unlock()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}

	now := time.Now().UTC()
	session.Status = StatusEndedEarly
	session.EndedAt = &now

	turns, err := e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listing turns for summary: %w", err)
	}
	session.Summary = Summarize(turns)

	if err := e.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}

	e.guards.Delete(sessionID)
	e.log.Info("interview session ended early",
		zap.String("session_id", sessionID),
		zap.Int("turns", session.Summary.Turns),
	)
	return nil
}

// Get returns a read-only snapshot of the session and its turns in
// chronological order. Never mutates.
func (e *Engine) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Session: session, Turns: turns}, nil
}

// History lists the user's sessions, newest first, with per-session
// averages for the dashboard.
func (e *Engine) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	sessions, err := e.store.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]

		summary := s.Summary
		if summary == nil {
			turns, err := e.store.ListTurns(ctx, s.ID)
			if err != nil {
				return nil, err
			}
			summary = Summarize(turns)
		}

		entries = append(entries, HistoryEntry{
			SessionID:    s.ID,
			RoleTitle:    s.Profile.RoleTitle,
			Status:       s.Status,
			CreatedAt:    s.CreatedAt,
			EndedAt:      s.EndedAt,
			Answered:     summary.Turns,
			AverageScore: summary.AverageScore,
		})
	}
	return entries, nil
}

// ReapStale ends active sessions idle longer than maxIdle. Used by the
// janitor; returns how many sessions were ended.
func (e *Engine) ReapStale(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxIdle)
	ids, err := e.store.ListStaleSessionIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale sessions: %w", err)
	}

	ended := 0
	for _, id := range ids {
		if err := e.End(ctx, id); err != nil {
			e.log.Warn("reaping stale session failed", zap.String("session_id", id), zap.Error(err))
			continue
		}
		ended++
	}
	return ended, nil
}

// score runs the scorer with a bounded timeout and a single simplified
// retry. The fallback to an ungraded evaluation is the caller's concern;
// this returns the last outcome untouched.
func (e *Engine) score(ctx context.Context, req ai.Request) ai.Evaluation {
	attempt, cancel := context.WithTimeout(ctx, e.cfg.ScorerTimeout)
	eval := e.scorer.Evaluate(attempt, req)
	cancel()
	if eval.Outcome == ai.OutcomeOK {
		return eval
	}

	e.log.Warn("scorer failed, retrying simplified", zap.String("outcome", eval.Outcome.String()))

	req.Simplified = true
	retryCtx, cancel := context.WithTimeout(ctx, e.cfg.ScorerTimeout)
	defer cancel()
	return e.scorer.Evaluate(retryCtx, req)
}

func (e *Engine) guard(sessionID string) *sync.Mutex {
	mu, _ := e.guards.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
