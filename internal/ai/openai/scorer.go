package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/prepair-dev/prepair/internal/ai"
	"github.com/prepair-dev/prepair/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultModel = "gpt-4o-mini"

	systemPrompt = "You are an expert interview evaluator. Score answers objectively " +
		"and provide structured feedback. Always respond with valid JSON only."

	defaultMaxLogLength = 200
	maxCodeRunes        = 4000
)

// Scorer evaluates interview answers through an OpenAI-compatible
// chat-completion endpoint. A custom base URL makes it usable with
// OpenRouter and self-hosted gateways as well.
type Scorer struct {
	client    *openai.Client
	model     string
	log       *zap.Logger
	maxLogLen int
}

func NewScorer(apiKey, baseURL, model string, log *zap.Logger, maxLogLength int) (*Scorer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		log:       log,
		maxLogLen: maxLogLength,
	}, nil
}

func (s *Scorer) Evaluate(ctx context.Context, req ai.Request) ai.Evaluation {
	prompt := buildUserPrompt(req)

	s.log.Debug("openai evaluate request",
		zap.String("model", s.model),
		zap.Bool("simplified", req.Simplified),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.Truncate(prompt, s.maxLogLen)),
	)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		outcome := ai.OutcomeMalformed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			outcome = ai.OutcomeTimeout
		}
		s.log.Warn("openai evaluate failed",
			zap.String("outcome", outcome.String()),
			zap.Error(err),
		)
		return ai.Evaluation{Outcome: outcome}
	}

	if len(resp.Choices) == 0 {
		s.log.Warn("openai returned no choices")
		return ai.Evaluation{Outcome: ai.OutcomeMalformed}
	}

	raw := resp.Choices[0].Message.Content
	s.log.Debug("openai evaluate response",
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.String("response_preview", logger.Truncate(raw, s.maxLogLen)),
	)

	score, followup, err := ai.ParseEvaluation(raw)
	if err != nil {
		s.log.Warn("openai response not parseable", zap.Error(err))
		return ai.Evaluation{Outcome: ai.OutcomeMalformed}
	}

	return ai.Evaluation{Outcome: ai.OutcomeOK, Score: score, Followup: followup}
}

func buildUserPrompt(req ai.Request) string {
	var b strings.Builder

	if req.Simplified {
		b.WriteString("Score this interview answer. Respond with JSON only:\n")
		b.WriteString(`{"overall": <float 0..1>, "rubric": {"clarity":0.5,"relevance":0.5,"structure":0.5,"correctness":0.5,"depth":0.5}, "notes": [], "followup": null}`)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Evaluate this interview answer. Return a JSON object:\n")
		b.WriteString(`{"overall": 0.75, "rubric": {"clarity": 0.8, "relevance": 0.7, "structure": 0.8, "correctness": 0.7, "depth": 0.75}, "notes": ["..."], "followup": null}`)
		b.WriteString("\n\nRules: all scores in [0,1]; do not execute code; notes max 4 items; ")
		b.WriteString("followup is one short question when the answer is weak, otherwise null.\n\n")
	}

	fmt.Fprintf(&b, "Question (%s): %s\n\n", questionType(req), req.Question)
	if len(req.Topics) > 0 {
		fmt.Fprintf(&b, "Relevant topics: %s\n\n", strings.Join(req.Topics, ", "))
	}
	fmt.Fprintf(&b, "Answer (transcript):\n%s\n", req.Answer)

	if code := strings.TrimSpace(req.Code); code != "" {
		if utf8.RuneCountInString(code) > maxCodeRunes {
			code = string([]rune(code)[:maxCodeRunes])
		}
		fmt.Fprintf(&b, "\nCode provided:\n%s\n", code)
	}

	b.WriteString("\nJSON Response:")
	return b.String()
}

func questionType(req ai.Request) string {
	if t := strings.TrimSpace(req.QuestionType); t != "" {
		return t
	}
	return "open"
}

var _ ai.Scorer = (*Scorer)(nil)
