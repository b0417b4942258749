package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iamvkosarev/ai-multichat/internal/model"
	in_memory "github.com/iamvkosarev/ai-multichat/internal/storage/in-memory"
)

type fakeChatAPI struct {
	mu        sync.Mutex
	sendErr   error
	deleteErr error
	sent      []string
	deleted   []string
	release   chan struct{}
}

func (f *fakeChatAPI) SendMessage(ctx context.Context, chatID, message string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, chatID)
	release, err := f.release, f.sendErr
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return "", err
	}
	return "re: " + message, nil
}

func (f *fakeChatAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChatAPI) DeleteChat(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, chatID)
	return f.deleteErr
}

func (f *fakeChatAPI) ListChats(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, nil
}

func newTestSession(t *testing.T, chatAPI ChatAPI) *SessionUsecase {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := OpenClientChat(
		context.Background(), ClientChatUsecaseDeps{
			StateStorage: in_memory.NewClientStateStorage(),
			Logger:       logger,
		},
	)
	require.NoError(t, err)
	return NewSessionUsecase(SessionUsecaseDeps{Store: store, API: chatAPI, Logger: logger})
}

func TestSendStoresMessageAndReply(t *testing.T) {
	chatAPI := &fakeChatAPI{}
	session := newTestSession(t, chatAPI)
	chatID := session.Store.ActiveChatID()

	reply, err := session.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "re: hello", reply)

	chat := session.Store.ActiveChat()
	assert.Equal(
		t, []model.ClientMessage{
			{Who: model.AuthorMe, Text: "hello"},
			{Who: model.AuthorBot, Text: "re: hello"},
		}, chat.Messages,
	)
	assert.Equal(t, "hello", chat.Title)
	assert.Equal(t, []string{chatID}, chatAPI.sent)
}

func TestSendEmptyMessageDoesNothing(t *testing.T) {
	chatAPI := &fakeChatAPI{}
	session := newTestSession(t, chatAPI)

	_, err := session.Send(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, session.Store.ActiveChat().Messages)
	assert.Empty(t, chatAPI.sent)
}

func TestSendFailureAppendsErrorBubble(t *testing.T) {
	chatAPI := &fakeChatAPI{sendErr: errors.New("Server error")}
	session := newTestSession(t, chatAPI)

	bubble, err := session.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "Error: Server error", bubble)

	messages := session.Store.ActiveChat().Messages
	require.Len(t, messages, 2)
	assert.Equal(t, model.ClientMessage{Who: model.AuthorMe, Text: "hello"}, messages[0])
	assert.Equal(t, model.ClientMessage{Who: model.AuthorBot, Text: "Error: Server error"}, messages[1])
}

func TestSendRejectsOverlappingSends(t *testing.T) {
	chatAPI := &fakeChatAPI{release: make(chan struct{})}
	session := newTestSession(t, chatAPI)

	done := make(chan error)
	go func() {
		_, err := session.Send(context.Background(), "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return chatAPI.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, session.Sending())

	_, err := session.Send(context.Background(), "second")
	require.ErrorIs(t, err, ErrSendInProgress)

	close(chatAPI.release)
	require.NoError(t, <-done)
	assert.False(t, session.Sending())
	assert.Len(t, session.Store.ActiveChat().Messages, 2)
}

func TestSendReplyGoesToOriginatingChat(t *testing.T) {
	chatAPI := &fakeChatAPI{release: make(chan struct{})}
	session := newTestSession(t, chatAPI)
	origin := session.Store.ActiveChatID()

	done := make(chan error)
	go func() {
		_, err := session.Send(context.Background(), "hello")
		done <- err
	}()
	require.Eventually(t, func() bool { return chatAPI.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, session.Sending())

	_, err := session.Store.Create(context.Background())
	require.NoError(t, err)
	close(chatAPI.release)
	require.NoError(t, <-done)

	chat, err := session.Store.GetChat(origin)
	require.NoError(t, err)
	assert.Len(t, chat.Messages, 2)
	assert.Empty(t, session.Store.ActiveChat().Messages)
}

func TestDeleteTreatsServerNotFoundAsSuccess(t *testing.T) {
	chatAPI := &fakeChatAPI{deleteErr: fmt.Errorf("wrapped: %w", model.ErrChatDoesNotExist)}
	session := newTestSession(t, chatAPI)
	ghost := session.Store.ActiveChatID()

	require.NoError(t, session.DeleteActive(context.Background()))
	assert.Equal(t, []string{ghost}, chatAPI.deleted)

	_, err := session.Store.GetChat(ghost)
	require.ErrorIs(t, err, model.ErrChatDoesNotExist)
	assert.Len(t, session.Store.ListChats(), 1)
}

func TestDeleteAbortsOnServerFailure(t *testing.T) {
	chatAPI := &fakeChatAPI{deleteErr: errors.New("Server error")}
	session := newTestSession(t, chatAPI)
	chatID := session.Store.ActiveChatID()
	_, err := session.Send(context.Background(), "keep me")
	require.NoError(t, err)

	require.Error(t, session.Delete(context.Background(), chatID))

	chat, err := session.Store.GetChat(chatID)
	require.NoError(t, err)
	assert.Len(t, chat.Messages, 2)
	assert.Equal(t, chatID, session.Store.ActiveChatID())
}

func TestDeleteUnknownLocalChatSkipsServer(t *testing.T) {
	chatAPI := &fakeChatAPI{}
	session := newTestSession(t, chatAPI)

	require.ErrorIs(t, session.Delete(context.Background(), "ghost"), model.ErrChatDoesNotExist)
	assert.Empty(t, chatAPI.deleted)
}

func TestListServerChats(t *testing.T) {
	chatAPI := &fakeChatAPI{}
	session := newTestSession(t, chatAPI)
	_, err := session.Send(context.Background(), "hi")
	require.NoError(t, err)

	chatIDs, err := session.ListServerChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{session.Store.ActiveChatID()}, chatIDs)
}
