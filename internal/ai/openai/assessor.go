package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/ai"
	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/utils"
)

const (
	providerName        = "openai"
	defaultModel        = goopenai.GPT4oMini
	defaultTemperature  = 0.3
	defaultMaxTokens    = 2000
	defaultMaxLogLength = 200
)

type Options struct {
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base-url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max-tokens"`
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Assessor implements ai.Assessor with a JSON-mode chat completion.
type Assessor struct {
	client chatCompleter
	opts   Options
	logger *zap.Logger
}

func New(apiKey string, opts Options, log *zap.Logger) (*Assessor, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = base
	}

	return newAssessor(goopenai.NewClientWithConfig(cfg), opts, log), nil
}

func newAssessor(client chatCompleter, opts Options, log *zap.Logger) *Assessor {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = defaultModel
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	return &Assessor{
		client: client,
		opts:   opts,
		logger: logger.WithCommonFields(log, providerName, opts.Model),
	}
}

func (a *Assessor) Assess(ctx context.Context, in *ai.Input) (*ai.Assessment, error) {
	system, message, err := ai.BuildPrompt(in)
	if err != nil {
		return nil, err
	}

	log := a.logger.With(logger.ProfileFields(in.ProfileID, "")...)
	log.Debug("openai chat completion request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, defaultMaxLogLength)),
	)

	resp, err := a.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: a.opts.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: message},
		},
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", ai.ErrAssessment, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: chat completion returned no choices", ai.ErrAssessment)
	}

	raw := resp.Choices[0].Message.Content
	log.Debug("openai chat completion response",
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.String("response_preview", utils.TruncateForLog(raw, defaultMaxLogLength)),
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
