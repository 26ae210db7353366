package gemini

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/prepair-dev/prepair/internal/ai"
	"github.com/prepair-dev/prepair/internal/logger"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	maxCodeRunes        = 4000
	maxTopics           = 10
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Scorer evaluates interview answers with Gemini. It implements ai.Scorer.
type Scorer struct {
	generator contentGenerator
	log       *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		log:       log,
		maxLogLen: maxLogLength,
	}
}

// Evaluate builds the rubric prompt, calls the model and classifies the
// result. It never returns an error: failures are reported via the outcome
// so the interview engine stays a total function over a closed set.
func (s *Scorer) Evaluate(ctx context.Context, req ai.Request) ai.Evaluation {
	prompt := buildPrompt(req)

	s.log.Debug("gemini evaluate request",
		zap.String("question_type", req.QuestionType),
		zap.Bool("simplified", req.Simplified),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.Truncate(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		outcome := classify(ctx, err)
		s.log.Warn("gemini evaluate failed",
			zap.String("outcome", outcome.String()),
			zap.Error(err),
		)
		return ai.Evaluation{Outcome: outcome}
	}

	s.log.Debug("gemini evaluate response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.Truncate(raw, s.maxLogLen)),
	)

	score, followup, err := ai.ParseEvaluation(raw)
	if err != nil {
		s.log.Warn("gemini response not parseable", zap.Error(err))
		return ai.Evaluation{Outcome: ai.OutcomeMalformed}
	}

	return ai.Evaluation{Outcome: ai.OutcomeOK, Score: score, Followup: followup}
}

func classify(ctx context.Context, err error) ai.Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ai.OutcomeTimeout
	}
	return ai.OutcomeMalformed
}

func buildPrompt(req ai.Request) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Question: {{QUESTION}}\n\nAnswer:\n{{ANSWER}}\n\n{{CODE_SECTION}}\n\nJSON Response:"
	}

	if req.Simplified {
		// Reduced prompt for the retry path: schema only, no rubric prose.
		template = "Score this interview answer. Respond with JSON only:\n" +
			`{"overall": <float 0..1>, "rubric": {"clarity":0.5,"relevance":0.5,"structure":0.5,"correctness":0.5,"depth":0.5}, "notes": [], "followup": null}` +
			"\n\nQuestion: {{QUESTION}}\n\nAnswer:\n{{ANSWER}}\n\n{{CODE_SECTION}}\n\nJSON Response:"
	}

	codeSection := ""
	if code := strings.TrimSpace(req.Code); code != "" {
		if utf8.RuneCountInString(code) > maxCodeRunes {
			code = string([]rune(code)[:maxCodeRunes])
		}
		codeSection = "Code provided:\n" + code
	}

	topics := req.Topics
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}

	questionType := strings.TrimSpace(req.QuestionType)
	if questionType == "" {
		questionType = "open"
	}

	prompt := strings.ReplaceAll(template, "{{QUESTION_TYPE}}", questionType)
	prompt = strings.ReplaceAll(prompt, "{{QUESTION}}", req.Question)
	prompt = strings.ReplaceAll(prompt, "{{TOPICS}}", strings.Join(topics, ", "))
	prompt = strings.ReplaceAll(prompt, "{{ANSWER}}", req.Answer)
	prompt = strings.ReplaceAll(prompt, "{{CODE_SECTION}}", codeSection)

	return prompt
}

var _ ai.Scorer = (*Scorer)(nil)
