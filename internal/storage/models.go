package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prepair-dev/prepair/internal/interview"
	"github.com/prepair-dev/prepair/internal/question"
)

// SessionRow is the persisted shape of an interview session. Plan and
// profile are stored as jsonb: the plan is immutable after creation and is
// only ever read back whole.
type SessionRow struct {
	ID              string     `gorm:"column:session_id;primaryKey;type:varchar(64)"`
	UserID          string     `gorm:"column:user_id;type:varchar(64);index;not null"`
	Status          string     `gorm:"column:status;type:varchar(20);not null;index"`
	SlotIndex       int        `gorm:"column:slot_index;not null"`
	Attempt         int        `gorm:"column:attempt;not null"`
	PendingFollowup string     `gorm:"column:pending_followup;type:text"`
	Profile         []byte     `gorm:"column:profile;type:jsonb"`
	Plan            []byte     `gorm:"column:plan;type:jsonb"`
	Summary         []byte     `gorm:"column:summary;type:jsonb"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null;index"`
	LastActivityAt  time.Time  `gorm:"column:last_activity_at;not null;index"`
	EndedAt         *time.Time `gorm:"column:ended_at"`
}

func (SessionRow) TableName() string { return "interview_sessions" }

// TurnRow is one submitted answer. Seq gives turns a strict per-table order
// so listing by session is stable even when timestamps collide.
type TurnRow struct {
	Seq          int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID           string    `gorm:"column:turn_id;type:varchar(64);uniqueIndex;not null"`
	SessionID    string    `gorm:"column:session_id;type:varchar(64);index;not null"`
	SlotIndex    int       `gorm:"column:slot_index;not null"`
	Attempt      int       `gorm:"column:attempt;not null"`
	QuestionID   string    `gorm:"column:question_id;type:varchar(64);not null"`
	QuestionText string    `gorm:"column:question_text;type:text;not null"`
	Answer       string    `gorm:"column:answer;type:text"`
	Code         string    `gorm:"column:code;type:text"`
	Skipped      bool      `gorm:"column:skipped;not null;default:false"`
	Overall      *float64  `gorm:"column:overall"`
	Rubric       []byte    `gorm:"column:rubric;type:jsonb"`
	Notes        []byte    `gorm:"column:notes;type:jsonb"`
	ScoreOutcome string    `gorm:"column:score_outcome;type:varchar(20)"`
	Followup     string    `gorm:"column:followup;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (TurnRow) TableName() string { return "interview_turns" }

// QuestionRow is one question-bank entry.
type QuestionRow struct {
	ID         string `gorm:"column:question_id;primaryKey;type:varchar(64)"`
	Text       string `gorm:"column:text;type:text;not null"`
	Type       string `gorm:"column:type;type:varchar(10);not null;index"`
	Topics     []byte `gorm:"column:topics;type:jsonb"`
	Difficulty string `gorm:"column:difficulty;type:varchar(10)"`
}

func (QuestionRow) TableName() string { return "question_bank" }

func sessionToRow(s *interview.Session) (*SessionRow, error) {
	profile, err := json.Marshal(s.Profile)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	plan, err := json.Marshal(s.Plan)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}

	var summary []byte
	if s.Summary != nil {
		if summary, err = json.Marshal(s.Summary); err != nil {
			return nil, fmt.Errorf("encoding summary: %w", err)
		}
	}

	return &SessionRow{
		ID:              s.ID,
		UserID:          s.UserID,
		Status:          string(s.Status),
		SlotIndex:       s.SlotIndex,
		Attempt:         s.Attempt,
		PendingFollowup: s.PendingFollowup,
		Profile:         profile,
		Plan:            plan,
		Summary:         summary,
		CreatedAt:       s.CreatedAt,
		LastActivityAt:  s.LastActivityAt,
		EndedAt:         s.EndedAt,
	}, nil
}

func sessionFromRow(row *SessionRow) (*interview.Session, error) {
	s := &interview.Session{
		ID:              row.ID,
		UserID:          row.UserID,
		Status:          interview.Status(row.Status),
		SlotIndex:       row.SlotIndex,
		Attempt:         row.Attempt,
		PendingFollowup: row.PendingFollowup,
		CreatedAt:       row.CreatedAt,
		LastActivityAt:  row.LastActivityAt,
		EndedAt:         row.EndedAt,
	}

	if err := json.Unmarshal(row.Profile, &s.Profile); err != nil {
		return nil, fmt.Errorf("decoding profile of session %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Plan, &s.Plan); err != nil {
		return nil, fmt.Errorf("decoding plan of session %s: %w", row.ID, err)
	}
	if len(row.Summary) > 0 {
		s.Summary = &interview.Summary{}
		if err := json.Unmarshal(row.Summary, s.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary of session %s: %w", row.ID, err)
		}
	}
	return s, nil
}

func turnToRow(t *interview.Turn) (*TurnRow, error) {
	var rubric, notes []byte
	var err error
	if len(t.Rubric) > 0 {
		if rubric, err = json.Marshal(t.Rubric); err != nil {
			return nil, fmt.Errorf("encoding rubric: %w", err)
		}
	}
	if len(t.Notes) > 0 {
		if notes, err = json.Marshal(t.Notes); err != nil {
			return nil, fmt.Errorf("encoding notes: %w", err)
		}
	}

	return &TurnRow{
		ID:           t.ID,
		SessionID:    t.SessionID,
		SlotIndex:    t.SlotIndex,
		Attempt:      t.Attempt,
		QuestionID:   t.QuestionID,
		QuestionText: t.QuestionText,
		Answer:       t.Answer,
		Code:         t.Code,
		Skipped:      t.Skipped,
		Overall:      t.Overall,
		Rubric:       rubric,
		Notes:        notes,
		ScoreOutcome: t.ScoreOutcome,
		Followup:     t.Followup,
		CreatedAt:    t.CreatedAt,
	}, nil
}

func turnFromRow(row *TurnRow) (interview.Turn, error) {
	t := interview.Turn{
		ID:           row.ID,
		SessionID:    row.SessionID,
		SlotIndex:    row.SlotIndex,
		Attempt:      row.Attempt,
		QuestionID:   row.QuestionID,
		QuestionText: row.QuestionText,
		Answer:       row.Answer,
		Code:         row.Code,
		Skipped:      row.Skipped,
		Overall:      row.Overall,
		ScoreOutcome: row.ScoreOutcome,
		Followup:     row.Followup,
		CreatedAt:    row.CreatedAt,
	}

	if len(row.Rubric) > 0 {
		if err := json.Unmarshal(row.Rubric, &t.Rubric); err != nil {
			return t, fmt.Errorf("decoding rubric of turn %s: %w", row.ID, err)
		}
	}
	if len(row.Notes) > 0 {
		if err := json.Unmarshal(row.Notes, &t.Notes); err != nil {
			return t, fmt.Errorf("decoding notes of turn %s: %w", row.ID, err)
		}
	}
	return t, nil
}

func questionToRow(q question.Question) (*QuestionRow, error) {
	topics, err := json.Marshal(q.Topics)
	if err != nil {
		return nil, fmt.Errorf("encoding topics: %w", err)
	}
	return &QuestionRow{
		ID:         q.ID,
		Text:       q.Text,
		Type:       string(q.Type),
		Topics:     topics,
		Difficulty: q.Difficulty,
	}, nil
}

func questionFromRow(row *QuestionRow) (question.Question, error) {
	q := question.Question{
		ID:         row.ID,
		Text:       row.Text,
		Type:       question.Type(row.Type),
		Difficulty: row.Difficulty,
	}
	if len(row.Topics) > 0 {
		if err := json.Unmarshal(row.Topics, &q.Topics); err != nil {
			return q, fmt.Errorf("decoding topics of question %s: %w", row.ID, err)
		}
	}
	return q, nil
}
