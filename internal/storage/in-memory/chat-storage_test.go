package in_memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const systemPrompt = "be brief"

func TestAcquireSeedsSystemMessage(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)

	session := storage.Acquire("c1")
	messages := session.Messages()
	session.Release()

	require.Len(t, messages, 1)
	assert.Equal(t, model.Message{Role: model.RoleSystem, Content: systemPrompt}, messages[0])
	assert.Equal(t, []string{"c1"}, storage.List())
}

func TestAppendKeepsPairOrder(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)

	session := storage.Acquire("c1")
	session.AppendUser("hi")
	messages := session.AppendAssistant("hello")
	session.Release()

	require.Len(t, messages, 3)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "hi"}, messages[1])
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "hello"}, messages[2])

	chat, err := storage.GetChat("c1")
	require.NoError(t, err)
	assert.Equal(t, messages, chat.Messages)
}

func TestAppendTrimsAfterEveryAppend(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 2)

	session := storage.Acquire("c1")
	defer session.Release()
	for i := 0; i < 5; i++ {
		session.AppendUser(fmt.Sprintf("q%d", i))
		session.AppendAssistant(fmt.Sprintf("a%d", i))
	}

	messages := session.Messages()
	require.Len(t, messages, 1+4)
	assert.Equal(t, model.RoleSystem, messages[0].Role)
	assert.Equal(t, "q3", messages[1].Content)
	assert.Equal(t, "a4", messages[4].Content)
}

func TestReturnedHistoryIsACopy(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)

	session := storage.Acquire("c1")
	messages := session.AppendUser("hi")
	messages[1].Content = "changed"
	session.Release()

	chat, err := storage.GetChat("c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", chat.Messages[1].Content)
}

func TestDelete(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)

	require.ErrorIs(t, storage.Delete("ghost"), model.ErrChatDoesNotExist)

	storage.Acquire("c1").Release()
	require.NoError(t, storage.Delete("c1"))
	assert.Empty(t, storage.List())
	require.ErrorIs(t, storage.Delete("c1"), model.ErrChatDoesNotExist)

	_, err := storage.GetChat("c1")
	require.ErrorIs(t, err, model.ErrChatDoesNotExist)
}

func TestAcquireAfterDeleteStartsFresh(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)

	session := storage.Acquire("c1")
	session.AppendUser("old")
	session.Release()
	require.NoError(t, storage.Delete("c1"))

	session = storage.Acquire("c1")
	defer session.Release()
	assert.Len(t, session.Messages(), 1)
}

func TestDeleteWaitsForInFlightExchange(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)
	session := storage.Acquire("c1")

	deleted := make(chan error)
	go func() {
		deleted <- storage.Delete("c1")
	}()

	select {
	case <-deleted:
		t.Fatal("delete finished while the chat was held")
	case <-time.After(50 * time.Millisecond):
	}

	session.AppendUser("hi")
	session.AppendAssistant("hello")
	session.Release()

	require.NoError(t, <-deleted)
	assert.Empty(t, storage.List())
}

func TestDifferentChatsDoNotBlockEachOther(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 20)
	held := storage.Acquire("c1")
	defer held.Release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		other := storage.Acquire("c2")
		other.AppendUser("hi")
		other.Release()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring another chat blocked")
	}
	assert.Equal(t, []string{"c1", "c2"}, storage.List())
}

func TestConcurrentExchangesOnOneChatStayPaired(t *testing.T) {
	storage := NewChatStorage(systemPrompt, 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := storage.Acquire("c1")
			defer session.Release()
			session.AppendUser(fmt.Sprintf("q%d", i))
			time.Sleep(time.Millisecond)
			session.AppendAssistant(fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	chat, err := storage.GetChat("c1")
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1+40)
	for i := 1; i < len(chat.Messages); i += 2 {
		question, answer := chat.Messages[i], chat.Messages[i+1]
		require.Equal(t, model.RoleUser, question.Role)
		require.Equal(t, model.RoleAssistant, answer.Role)
		assert.Equal(t, "a"+question.Content[1:], answer.Content)
	}
}
