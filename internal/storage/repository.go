package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prepair-dev/prepair/internal/interview"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements interview.Store on Postgres.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRepository(db *gorm.DB, log *zap.Logger) *Repository {
	return &Repository{db: db, log: log}
}

var _ interview.Store = (*Repository)(nil)

func (r *Repository) CreateSession(ctx context.Context, s *interview.Session) error {
	row, err := sessionToRow(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session %s already exists", s.ID)
		}
		return dbError("creating session", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	var row SessionRow
	err := r.db.WithContext(ctx).First(&row, "session_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interview.ErrSessionNotFound
	}
	if err != nil {
		return nil, dbError("loading session", err)
	}
	return sessionFromRow(&row)
}

func (r *Repository) SaveSession(ctx context.Context, s *interview.Session) error {
	row, err := sessionToRow(s)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&SessionRow{}).Where("session_id = ?", s.ID).Updates(map[string]any{
		"status":           row.Status,
		"slot_index":       row.SlotIndex,
		"attempt":          row.Attempt,
		"pending_followup": row.PendingFollowup,
		"summary":          row.Summary,
		"last_activity_at": row.LastActivityAt,
		"ended_at":         row.EndedAt,
	})
	if res.Error != nil {
		return dbError("saving session", res.Error)
	}
	if res.RowsAffected == 0 {
		return interview.ErrSessionNotFound
	}
	return nil
}

// CommitTurn appends the turn and updates the session in one transaction.
// The session row is locked and its status re-checked inside the
// transaction: a submission that lost a race against a terminal transition
// fails with ErrSessionNotActive and leaves no trace.
func (r *Repository) CommitTurn(ctx context.Context, s *interview.Session, turn *interview.Turn) error {
	sessionRow, err := sessionToRow(s)
	if err != nil {
		return err
	}
	turnRow, err := turnToRow(turn)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current SessionRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "session_id = ?", s.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return interview.ErrSessionNotFound
		}
		if err != nil {
			return dbError("locking session", err)
		}
		if interview.Status(current.Status).Terminal() {
			return interview.ErrSessionNotActive
		}

		if err := tx.Create(turnRow).Error; err != nil {
			return dbError("inserting turn", err)
		}

		updates := map[string]any{
			"status":           sessionRow.Status,
			"slot_index":       sessionRow.SlotIndex,
			"attempt":          sessionRow.Attempt,
			"pending_followup": sessionRow.PendingFollowup,
			"summary":          sessionRow.Summary,
			"last_activity_at": sessionRow.LastActivityAt,
			"ended_at":         sessionRow.EndedAt,
		}
		if err := tx.Model(&SessionRow{}).Where("session_id = ?", s.ID).Updates(updates).Error; err != nil {
			return dbError("updating session", err)
		}
		return nil
	})
}

func (r *Repository) ListTurns(ctx context.Context, sessionID string) ([]interview.Turn, error) {
	var rows []TurnRow
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq asc").
		Find(&rows).Error
	if err != nil {
		return nil, dbError("listing turns", err)
	}

	turns := make([]interview.Turn, 0, len(rows))
	for i := range rows {
		t, err := turnFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *Repository) ListSessionsByUser(ctx context.Context, userID string) ([]interview.Session, error) {
	var rows []SessionRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, dbError("listing sessions", err)
	}

	sessions := make([]interview.Session, 0, len(rows))
	for i := range rows {
		s, err := sessionFromRow(&rows[i])
		if err != nil {
			// A corrupted row must not take the whole history down.
			r.log.Warn("skipping undecodable session row",
				zap.String("session_id", rows[i].ID),
				zap.Error(err),
			)
			continue
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func (r *Repository) ListStaleSessionIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&SessionRow{}).
		Where("status = ? AND last_activity_at < ?", string(interview.StatusActive), cutoff).
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, dbError("listing stale sessions", err)
	}
	return ids, nil
}
