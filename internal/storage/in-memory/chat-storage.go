package in_memory

import (
	"sort"
	"sync"

	"github.com/iamvkosarev/ai-multichat/internal/history"
	"github.com/iamvkosarev/ai-multichat/internal/model"
)

type chatEntry struct {
	mu       sync.Mutex
	messages []model.Message
	deleted  bool
}

// ChatStorage keeps trimmed histories per chat id for the process lifetime.
// The storage mutex only guards the map; each chat has its own mutex so
// exchanges on different ids never wait for each other.
type ChatStorage struct {
	mu           sync.Mutex
	chats        map[string]*chatEntry
	systemPrompt string
	maxTurns     int
}

func NewChatStorage(systemPrompt string, maxTurns int) *ChatStorage {
	return &ChatStorage{
		chats:        make(map[string]*chatEntry),
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
	}
}

// ChatSession is an exclusive handle over one chat's history. It must be released.
type ChatSession struct {
	storage *ChatStorage
	entry   *chatEntry
	chatID  string
}

// Acquire returns the history for chatID, seeding it with the system message
// when absent, and blocks until no other session holds the same id.
func (a *ChatStorage) Acquire(chatID string) *ChatSession {
	for {
		a.mu.Lock()
		entry, ok := a.chats[chatID]
		if !ok {
			entry = &chatEntry{
				messages: []model.Message{
					{Role: model.RoleSystem, Content: a.systemPrompt},
				},
			}
			a.chats[chatID] = entry
		}
		a.mu.Unlock()

		entry.mu.Lock()
		if !entry.deleted {
			return &ChatSession{storage: a, entry: entry, chatID: chatID}
		}
		entry.mu.Unlock()
	}
}

func (s *ChatSession) ChatID() string {
	return s.chatID
}

func (s *ChatSession) AppendUser(text string) []model.Message {
	return s.append(model.RoleUser, text)
}

func (s *ChatSession) AppendAssistant(text string) []model.Message {
	return s.append(model.RoleAssistant, text)
}

// Messages returns a copy of the current history.
func (s *ChatSession) Messages() []model.Message {
	return copyMessages(s.entry.messages)
}

func (s *ChatSession) Release() {
	s.entry.mu.Unlock()
}

func (s *ChatSession) append(role model.Role, text string) []model.Message {
	s.entry.messages = append(s.entry.messages, model.Message{Role: role, Content: text})
	s.entry.messages = history.Trim(s.entry.messages, s.storage.maxTurns)
	return copyMessages(s.entry.messages)
}

// Delete waits for an in-flight exchange on chatID and removes the chat.
func (a *ChatStorage) Delete(chatID string) error {
	a.mu.Lock()
	entry, ok := a.chats[chatID]
	a.mu.Unlock()
	if !ok {
		return model.ErrChatDoesNotExist
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return model.ErrChatDoesNotExist
	}
	entry.deleted = true

	a.mu.Lock()
	if a.chats[chatID] == entry {
		delete(a.chats, chatID)
	}
	a.mu.Unlock()
	return nil
}

func (a *ChatStorage) GetChat(chatID string) (model.ServerChat, error) {
	a.mu.Lock()
	entry, ok := a.chats[chatID]
	a.mu.Unlock()
	if !ok {
		return model.ServerChat{}, model.ErrChatDoesNotExist
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return model.ServerChat{}, model.ErrChatDoesNotExist
	}
	return model.ServerChat{
		ChatID:   chatID,
		Messages: copyMessages(entry.messages),
	}, nil
}

// List returns the ids currently held, sorted.
func (a *ChatStorage) List() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	chatIDs := make([]string, 0, len(a.chats))
	for chatID := range a.chats {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Strings(chatIDs)
	return chatIDs
}

func copyMessages(messages []model.Message) []model.Message {
	copied := make([]model.Message, len(messages))
	copy(copied, messages)
	return copied
}
