package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/prepair-dev/prepair/internal/question"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// questionFile is the on-disk seed format.
type questionFile struct {
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	ID         string   `yaml:"id"`
	Text       string   `yaml:"text"`
	Type       string   `yaml:"type"`
	Topics     []string `yaml:"topics"`
	Difficulty string   `yaml:"difficulty"`
}

// LoadQuestionFile parses a YAML seed file and validates each entry.
func LoadQuestionFile(path string) ([]question.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question file: %w", err)
	}

	var file questionFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing question file: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("question file %s contains no questions", path)
	}

	seen := make(map[string]bool, len(file.Questions))
	questions := make([]question.Question, 0, len(file.Questions))
	for i, sq := range file.Questions {
		switch {
		case sq.ID == "":
			return nil, fmt.Errorf("question %d: missing id", i)
		case seen[sq.ID]:
			return nil, fmt.Errorf("question %d: duplicate id %s", i, sq.ID)
		case sq.Text == "":
			return nil, fmt.Errorf("question %s: missing text", sq.ID)
		case sq.Type != string(question.TypeOpen) && sq.Type != string(question.TypeCode):
			return nil, fmt.Errorf("question %s: unknown type %q", sq.ID, sq.Type)
		}
		seen[sq.ID] = true
		questions = append(questions, question.Question{
			ID:         sq.ID,
			Text:       sq.Text,
			Type:       question.Type(sq.Type),
			Topics:     sq.Topics,
			Difficulty: sq.Difficulty,
		})
	}
	return questions, nil
}

// SeedQuestions upserts the given questions into the bank. Existing IDs are
// overwritten so re-seeding picks up edited texts and topics.
func SeedQuestions(ctx context.Context, db *gorm.DB, questions []question.Question, log *zap.Logger) error {
	rows := make([]*QuestionRow, 0, len(questions))
	for _, q := range questions {
		row, err := questionToRow(q)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_id"}},
			UpdateAll: true,
		}).
		Create(rows).Error
	if err != nil {
		return dbError("seeding questions", err)
	}

	log.Info("question bank seeded", zap.Int("questions", len(rows)))
	return nil
}
