package gemini

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/ai"
	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/utils"
)

const (
	providerName        = "gemini"
	defaultMaxLogLength = 200
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Assessor implements ai.Assessor on top of a Gemini generator.
type Assessor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAssessor(generator contentGenerator, log *zap.Logger, maxLogLength int) *Assessor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Assessor{
		generator: generator,
		logger:    logger.WithCommonFields(log, providerName, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (a *Assessor) Assess(ctx context.Context, in *ai.Input) (*ai.Assessment, error) {
	system, message, err := ai.BuildPrompt(in)
	if err != nil {
		return nil, err
	}

	log := a.logger.With(logger.ProfileFields(in.ProfileID, "")...)
	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrAssessment, err)
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	assessment, err := ai.ParseAssessment(raw)
	if err != nil {
		return nil, err
	}
	if err := assessment.Err(); err != nil {
		return assessment, err
	}

	return assessment, nil
}
