package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/config"
	"github.com/iamvkosarev/ai-multichat/internal/model"
	openai_tools "github.com/iamvkosarev/ai-multichat/pkg/openai-tools"
)

var countTokens = openai_tools.CountToken

// OpenAIUsecase is the completion gateway backed by the OpenAI chat API.
type OpenAIUsecase struct {
	cfg    config.OpenAI
	client *openai.Client
	logger *zap.Logger
}

func NewOpenAIUsecase(cfg config.OpenAI, logger *zap.Logger) *OpenAIUsecase {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		// the first encoding lookup may download the BPE ranks
		if _, err := countTokens(nil, cfg.Model); err != nil {
			logger.Debug("failed to load token encoding", zap.String("model", cfg.Model), zap.Error(err))
		}
	}
	return &OpenAIUsecase{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

func (o *OpenAIUsecase) Complete(ctx context.Context, messages []model.Message) (string, error) {
	history := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, message := range messages {
		history = append(
			history, openai.ChatCompletionMessage{
				Role:    parseRole(message.Role),
				Content: message.Content,
			},
		)
	}

	if o.logger.Core().Enabled(zap.DebugLevel) {
		tokenCount, err := countTokens(history, o.cfg.Model)
		if err != nil {
			o.logger.Debug("failed to count tokens", zap.Error(err))
		} else {
			o.logger.Debug(
				"completion request",
				zap.String("model", o.cfg.Model),
				zap.Int("messages", len(history)),
				zap.Int("estimated_tokens", tokenCount),
			)
		}
	}

	resp, err := o.client.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model:       o.cfg.Model,
			Temperature: o.cfg.Temperature,
			Messages:    history,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func parseRole(role model.Role) string {
	switch role {
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
