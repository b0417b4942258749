package http_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iamvkosarev/ai-multichat/config"
	"github.com/iamvkosarev/ai-multichat/internal/model"
	in_memory "github.com/iamvkosarev/ai-multichat/internal/storage/in-memory"
	http_server "github.com/iamvkosarev/ai-multichat/internal/transport/http-server"
	"github.com/iamvkosarev/ai-multichat/internal/usecase"
)

type replyGateway struct {
	err error
}

func (r replyGateway) Complete(_ context.Context, messages []model.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "reply to " + messages[len(messages)-1].Content, nil
}

func newTestServer(t *testing.T, gateway usecase.CompletionGateway) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	chats := usecase.NewServerChatUsecase(
		usecase.ServerChatUsecaseDeps{
			ChatStorage: in_memory.NewChatStorage("be brief", 20),
			Gateway:     gateway,
			Logger:      logger,
		}, config.History{MaxTurns: 20, CompletionTimeout: time.Second},
	)
	server := httptest.NewServer(http_server.NewServer(chats, logger).Handler())
	t.Cleanup(server.Close)
	return server
}

func newTestSession(t *testing.T, client *Client) *usecase.SessionUsecase {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := usecase.OpenClientChat(
		context.Background(), usecase.ClientChatUsecaseDeps{
			StateStorage: in_memory.NewClientStateStorage(),
			Logger:       logger,
		},
	)
	require.NoError(t, err)
	return usecase.NewSessionUsecase(usecase.SessionUsecaseDeps{Store: store, API: client, Logger: logger})
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, replyGateway{})
	client := NewClient(server.URL+"/", time.Second)

	reply, err := client.SendMessage(ctx, "chat_1_abc", "hi")
	require.NoError(t, err)
	assert.Equal(t, "reply to hi", reply)

	chatIDs, err := client.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat_1_abc"}, chatIDs)

	require.NoError(t, client.DeleteChat(ctx, "chat_1_abc"))

	err = client.DeleteChat(ctx, "chat_1_abc")
	require.ErrorIs(t, err, model.ErrChatDoesNotExist)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClientSurfacesGenericServerError(t *testing.T) {
	server := newTestServer(t, replyGateway{err: errors.New("boom")})
	client := NewClient(server.URL, time.Second)

	_, err := client.SendMessage(context.Background(), "c1", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Server error", apiErr.Error())
	assert.False(t, errors.Is(err, model.ErrChatDoesNotExist))
}

func TestSessionDeletesChatUnknownToServer(t *testing.T) {
	server := newTestServer(t, replyGateway{})
	session := newTestSession(t, NewClient(server.URL, time.Second))
	ghost := session.Store.ActiveChatID()

	require.NoError(t, session.Delete(context.Background(), ghost))

	_, err := session.Store.GetChat(ghost)
	require.ErrorIs(t, err, model.ErrChatDoesNotExist)
	assert.Len(t, session.Store.ListChats(), 1)
}

func TestSessionConversationOverHTTP(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t, replyGateway{})
	client := NewClient(server.URL, time.Second)
	session := newTestSession(t, client)

	reply, err := session.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply to hello", reply)

	chatIDs, err := session.ListServerChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{session.Store.ActiveChatID()}, chatIDs)

	require.NoError(t, session.DeleteActive(ctx))
	chatIDs, err = client.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chatIDs)
}

func TestSessionShowsBubbleWhenServerUnreachable(t *testing.T) {
	server := newTestServer(t, replyGateway{})
	url := server.URL
	server.Close()

	session := newTestSession(t, NewClient(url, time.Second))
	bubble, err := session.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, bubble, "Error: failed to reach chat server")

	messages := session.Store.ActiveChat().Messages
	require.Len(t, messages, 2)
	assert.Equal(t, model.AuthorBot, messages[1].Who)
}
