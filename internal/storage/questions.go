package storage

import (
	"context"
	"sort"

	"github.com/prepair-dev/prepair/internal/question"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recentSessionWindow bounds the repeat-avoidance lookback. Questions asked
// within the user's last few sessions are excluded from selection; older
// repeats are acceptable.
const recentSessionWindow = 3

// Bank serves candidate questions from the question_bank table, ranked by
// topic match against the profile and filtered against recently asked
// questions.
type Bank struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewBank(db *gorm.DB, log *zap.Logger) *Bank {
	return &Bank{db: db, log: log}
}

var _ question.Source = (*Bank)(nil)

func (b *Bank) Select(ctx context.Context, profile question.Profile, typ question.Type, limit int) ([]question.Question, error) {
	if limit <= 0 {
		return nil, nil
	}

	asked, err := b.recentlyAsked(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	var rows []QuestionRow
	if err := b.db.WithContext(ctx).Where("type = ?", string(typ)).Find(&rows).Error; err != nil {
		return nil, dbError("loading question bank", err)
	}

	type ranked struct {
		q     question.Question
		score float64
	}
	candidates := make([]ranked, 0, len(rows))
	for i := range rows {
		if asked[rows[i].ID] {
			continue
		}
		q, err := questionFromRow(&rows[i])
		if err != nil {
			b.log.Warn("skipping undecodable question row",
				zap.String("question_id", rows[i].ID),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, ranked{q: q, score: question.MatchScore(q.Topics, profile.Weights)})
	}

	// Stable sort keeps bank order as the tiebreak, so equal-score
	// selection is deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]question.Question, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.q)
	}
	return out, nil
}

// recentlyAsked returns the question IDs used in the user's most recent
// sessions.
func (b *Bank) recentlyAsked(ctx context.Context, userID string) (map[string]bool, error) {
	if userID == "" {
		return nil, nil
	}

	var sessionIDs []string
	err := b.db.WithContext(ctx).
		Model(&SessionRow{}).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(recentSessionWindow).
		Pluck("session_id", &sessionIDs).Error
	if err != nil {
		return nil, dbError("listing recent sessions", err)
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	var questionIDs []string
	err = b.db.WithContext(ctx).
		Model(&TurnRow{}).
		Distinct("question_id").
		Where("session_id IN ?", sessionIDs).
		Pluck("question_id", &questionIDs).Error
	if err != nil {
		return nil, dbError("listing asked questions", err)
	}

	asked := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		asked[id] = true
	}
	return asked, nil
}
