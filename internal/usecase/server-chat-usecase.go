package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/config"
	"github.com/iamvkosarev/ai-multichat/internal/model"
	in_memory "github.com/iamvkosarev/ai-multichat/internal/storage/in-memory"
)

type CompletionGateway interface {
	Complete(ctx context.Context, messages []model.Message) (string, error)
}

type ServerChatUsecaseDeps struct {
	ChatStorage *in_memory.ChatStorage
	Gateway     CompletionGateway
	Logger      *zap.Logger
}

// ServerChatUsecase is the server half of the session exchange.
type ServerChatUsecase struct {
	ServerChatUsecaseDeps
	cfg config.History
}

func NewServerChatUsecase(deps ServerChatUsecaseDeps, cfg config.History) *ServerChatUsecase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ServerChatUsecase{
		ServerChatUsecaseDeps: deps,
		cfg:                   cfg,
	}
}

// SendMessage appends message to chatID's history, asks the gateway for a reply
// and appends it. The chat stays locked for the whole exchange so the
// user/assistant pair cannot interleave with another send on the same id.
func (s *ServerChatUsecase) SendMessage(ctx context.Context, chatID, message string) (string, error) {
	if chatID == "" {
		return "", model.NewValidationError("chatId", "chatId is required")
	}
	if message == "" {
		return "", model.NewValidationError("message", "message is required")
	}

	session := s.ChatStorage.Acquire(chatID)
	defer session.Release()

	messages := session.AppendUser(message)

	completionCtx := ctx
	if s.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		completionCtx, cancel = context.WithTimeout(ctx, s.cfg.CompletionTimeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := s.Gateway.Complete(completionCtx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to complete chat %s: %w: %w", chatID, model.ErrCompletionFailed, err)
	}
	s.Logger.Debug(
		"completion received",
		zap.String("chat_id", chatID),
		zap.Int("history", len(messages)),
		zap.Duration("took", time.Since(started)),
	)

	session.AppendAssistant(reply)
	return reply, nil
}

func (s *ServerChatUsecase) DeleteChat(chatID string) error {
	if chatID == "" {
		return model.NewValidationError("chatId", "chatId is required")
	}
	if err := s.ChatStorage.Delete(chatID); err != nil {
		if errors.Is(err, model.ErrChatDoesNotExist) {
			return err
		}
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	s.Logger.Info("chat deleted", zap.String("chat_id", chatID))
	return nil
}

func (s *ServerChatUsecase) ListChats() []string {
	return s.ChatStorage.List()
}

func (s *ServerChatUsecase) GetChat(chatID string) (model.ServerChat, error) {
	return s.ChatStorage.GetChat(chatID)
}
