package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

const (
	titleMaxRunes    = 18
	titleEllipsis    = "…"
	autoTitleFormat  = "Chat %d"
	chatIDSuffixSize = 12
)

var autoTitlePattern = regexp.MustCompile(`^Chat \d+$`)

type ClientStateStorage interface {
	LoadState(ctx context.Context) (model.ClientState, error)
	SaveState(ctx context.Context, state model.ClientState) error
}

type ClientChatUsecaseDeps struct {
	StateStorage ClientStateStorage
	Logger       *zap.Logger
}

// ClientChatUsecase is the durable client-side registry of chats. It always
// holds at least one chat and its active id always resolves.
type ClientChatUsecase struct {
	ClientChatUsecaseDeps
	mu        sync.Mutex
	state     model.ClientState
	newChatID func() string
}

// OpenClientChat loads the persisted state. An absent or corrupt blob is
// replaced with one default chat, written back immediately. Any other load
// failure is returned and the stored blob is left alone.
func OpenClientChat(ctx context.Context, deps ClientChatUsecaseDeps) (*ClientChatUsecase, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	c := &ClientChatUsecase{
		ClientChatUsecaseDeps: deps,
		newChatID:             makeChatID,
	}

	state, err := deps.StateStorage.LoadState(ctx)
	if err == nil {
		state, err = repairState(state)
	}
	switch {
	case err == nil:
		c.state = state
		return c, nil
	case errors.Is(err, model.ErrStateDoesNotExist):
	case errors.Is(err, model.ErrStateCorrupted):
		c.Logger.Warn("client state is corrupted, starting fresh", zap.Error(err))
	default:
		return nil, fmt.Errorf("failed to load client state: %w", err)
	}

	c.state = model.ClientState{Chats: make(map[string]*model.ClientChat)}
	c.createLocked()
	if err = c.saveLocked(ctx); err != nil {
		c.Logger.Error("failed to write initial client state", zap.Error(err))
	}
	return c, nil
}

// Create adds a fresh chat titled "Chat <n>" and makes it active.
func (c *ClientChatUsecase) Create(ctx context.Context) (model.ClientChat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat := c.createLocked()
	return copyChat(chat), c.saveLocked(ctx)
}

// Switch activates chatID. Unknown ids are ignored.
func (c *ClientChatUsecase) Switch(ctx context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Chats[chatID]; !ok {
		return nil
	}
	c.state.ActiveChatID = chatID
	return c.saveLocked(ctx)
}

// AppendMessage adds a message to chatID. The first user message of a chat
// whose title is still auto-generated becomes its title.
func (c *ClientChatUsecase) AppendMessage(
	ctx context.Context,
	chatID string,
	who model.Author,
	text string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.state.Chats[chatID]
	if !ok {
		return model.ErrChatDoesNotExist
	}
	chat.Messages = append(chat.Messages, model.ClientMessage{Who: who, Text: text})
	if who == model.AuthorMe && len(chat.Messages) == 1 && autoTitlePattern.MatchString(chat.Title) {
		chat.Title = titleFromMessage(text)
	}
	return c.saveLocked(ctx)
}

// Delete removes chatID. When it was active the first remaining chat becomes
// active; when none remain a new default chat is created.
func (c *ClientChatUsecase) Delete(ctx context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Chats[chatID]; !ok {
		return model.ErrChatDoesNotExist
	}
	delete(c.state.Chats, chatID)
	c.state.Order = removeID(c.state.Order, chatID)

	if len(c.state.Order) == 0 {
		c.createLocked()
	} else if c.state.ActiveChatID == chatID {
		c.state.ActiveChatID = c.state.Order[0]
	}
	return c.saveLocked(ctx)
}

func (c *ClientChatUsecase) ActiveChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveChatID
}

func (c *ClientChatUsecase) ActiveChat() model.ClientChat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyChat(c.state.Chats[c.state.ActiveChatID])
}

func (c *ClientChatUsecase) GetChat(chatID string) (model.ClientChat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.state.Chats[chatID]
	if !ok {
		return model.ClientChat{}, model.ErrChatDoesNotExist
	}
	return copyChat(chat), nil
}

// ListChats returns the chats in creation order.
func (c *ClientChatUsecase) ListChats() []model.ClientChat {
	c.mu.Lock()
	defer c.mu.Unlock()
	chats := make([]model.ClientChat, 0, len(c.state.Order))
	for _, chatID := range c.state.Order {
		chats = append(chats, copyChat(c.state.Chats[chatID]))
	}
	return chats
}

func (c *ClientChatUsecase) createLocked() *model.ClientChat {
	chatID := c.newChatID()
	for {
		if _, exists := c.state.Chats[chatID]; !exists {
			break
		}
		chatID = c.newChatID()
	}
	chat := &model.ClientChat{
		ChatID:   chatID,
		Title:    fmt.Sprintf(autoTitleFormat, len(c.state.Chats)+1),
		Messages: make([]model.ClientMessage, 0),
	}
	c.state.Chats[chatID] = chat
	c.state.Order = append(c.state.Order, chatID)
	c.state.ActiveChatID = chatID
	return chat
}

func (c *ClientChatUsecase) saveLocked(ctx context.Context) error {
	if err := c.StateStorage.SaveState(ctx, c.state); err != nil {
		return fmt.Errorf("failed to persist client state: %w", err)
	}
	return nil
}

// repairState rebuilds the order list and the active pointer of a decoded blob.
// A blob without chats cannot be repaired.
func repairState(state model.ClientState) (model.ClientState, error) {
	for chatID, chat := range state.Chats {
		if chat == nil {
			delete(state.Chats, chatID)
			continue
		}
		chat.ChatID = chatID
	}
	if len(state.Chats) == 0 {
		return model.ClientState{}, fmt.Errorf("%w: no chats", model.ErrStateCorrupted)
	}

	seen := make(map[string]struct{}, len(state.Chats))
	order := make([]string, 0, len(state.Chats))
	for _, chatID := range state.Order {
		if _, ok := state.Chats[chatID]; !ok {
			continue
		}
		if _, dup := seen[chatID]; dup {
			continue
		}
		seen[chatID] = struct{}{}
		order = append(order, chatID)
	}
	missing := make([]string, 0)
	for chatID := range state.Chats {
		if _, ok := seen[chatID]; !ok {
			missing = append(missing, chatID)
		}
	}
	sort.Strings(missing)
	state.Order = append(order, missing...)

	if _, ok := state.Chats[state.ActiveChatID]; !ok {
		state.ActiveChatID = state.Order[0]
	}
	return state, nil
}

// makeChatID derives an id from a nanosecond timestamp and random hex.
func makeChatID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:chatIDSuffixSize]
	return fmt.Sprintf("chat_%d_%s", time.Now().UnixNano(), suffix)
}

func titleFromMessage(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes]) + titleEllipsis
}

func removeID(chatIDs []string, chatID string) []string {
	kept := chatIDs[:0]
	for _, id := range chatIDs {
		if id != chatID {
			kept = append(kept, id)
		}
	}
	return kept
}

func copyChat(chat *model.ClientChat) model.ClientChat {
	if chat == nil {
		return model.ClientChat{}
	}
	copied := *chat
	copied.Messages = make([]model.ClientMessage, len(chat.Messages))
	copy(copied.Messages, chat.Messages)
	return copied
}
