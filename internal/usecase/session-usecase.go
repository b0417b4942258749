package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

const ErrorBubblePrefix = "Error: "

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrSendInProgress = errors.New("another message is still being sent")
)

// ChatAPI is the server side of the session exchange as seen by a client.
// DeleteChat reports an unknown id with model.ErrChatDoesNotExist.
type ChatAPI interface {
	SendMessage(ctx context.Context, chatID, message string) (string, error)
	DeleteChat(ctx context.Context, chatID string) error
	ListChats(ctx context.Context) ([]string, error)
}

type SessionUsecaseDeps struct {
	Store  *ClientChatUsecase
	API    ChatAPI
	Logger *zap.Logger
}

// SessionUsecase keeps one client store coherent with the server. Message
// content is stored locally before the server answers; deletion waits for
// the server.
type SessionUsecase struct {
	SessionUsecaseDeps
	sending atomic.Bool
}

func NewSessionUsecase(deps SessionUsecaseDeps) *SessionUsecase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SessionUsecase{SessionUsecaseDeps: deps}
}

// Send posts text to the active chat. On failure an error bubble is stored in
// the chat instead of a reply and returned along with the error.
func (s *SessionUsecase) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if !s.sending.CompareAndSwap(false, true) {
		return "", ErrSendInProgress
	}
	defer s.sending.Store(false)

	chatID := s.Store.ActiveChatID()
	if err := s.Store.AppendMessage(ctx, chatID, model.AuthorMe, text); err != nil {
		s.Logger.Warn("failed to store user message", zap.String("chat_id", chatID), zap.Error(err))
	}

	reply, err := s.API.SendMessage(ctx, chatID, text)
	if err != nil {
		bubble := ErrorBubblePrefix + err.Error()
		if appendErr := s.Store.AppendMessage(ctx, chatID, model.AuthorBot, bubble); appendErr != nil {
			s.Logger.Warn("failed to store error bubble", zap.String("chat_id", chatID), zap.Error(appendErr))
		}
		return bubble, fmt.Errorf("failed to send message to chat %s: %w", chatID, err)
	}

	if err = s.Store.AppendMessage(ctx, chatID, model.AuthorBot, reply); err != nil {
		s.Logger.Warn("failed to store reply", zap.String("chat_id", chatID), zap.Error(err))
	}
	return reply, nil
}

// Sending reports whether a Send is outstanding.
func (s *SessionUsecase) Sending() bool {
	return s.sending.Load()
}

// Delete removes chatID on the server first. A server that never knew the
// chat counts as success; any other failure leaves the local store untouched.
func (s *SessionUsecase) Delete(ctx context.Context, chatID string) error {
	if _, err := s.Store.GetChat(chatID); err != nil {
		return err
	}
	if err := s.API.DeleteChat(ctx, chatID); err != nil {
		if !errors.Is(err, model.ErrChatDoesNotExist) {
			return fmt.Errorf("failed to delete chat %s on server: %w", chatID, err)
		}
		s.Logger.Debug("chat unknown to server, deleting locally", zap.String("chat_id", chatID))
	}
	return s.Store.Delete(ctx, chatID)
}

func (s *SessionUsecase) DeleteActive(ctx context.Context) error {
	return s.Delete(ctx, s.Store.ActiveChatID())
}

func (s *SessionUsecase) ListServerChats(ctx context.Context) ([]string, error) {
	chatIDs, err := s.API.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list server chats: %w", err)
	}
	return chatIDs, nil
}
