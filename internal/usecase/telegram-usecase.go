package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/config"
	"github.com/iamvkosarev/ai-multichat/pkg/local"
)

const (
	CommandStart  = "start"
	CommandHelp   = "help"
	CommandNew    = "new"
	CommandChats  = "chats"
	CommandDelete = "delete"
	CommandServer = "server"

	callbackSwitchPrefix = "switch:"
	activeChatMarker     = "• "
)

var (
	TextCommandStart = local.NewSet(
		"Welcome! Write something to start a conversation. /new opens another chat, /chats switches between them, /delete removes the current one.",
		local.NewTrans(local.Rus, "Добро пожаловать! Напишите что-нибудь, чтобы начать. /new создаёт новый чат, /chats переключает чаты, /delete удаляет текущий."),
	)
	TextCommandHelp = local.NewSet(
		"/new - start a new chat\n/chats - list and switch chats\n/delete - delete the current chat\n/server - chats known to the server",
		local.NewTrans(local.Rus, "/new - новый чат\n/chats - список и переключение чатов\n/delete - удалить текущий чат\n/server - чаты на сервере"),
	)
	TextCommandUnknown = local.NewSet(
		"I don't know that command",
		local.NewTrans(local.Rus, "Я не знаю такой команды"),
	)
	TextUserNoAccess = local.NewSet(
		"You are not allowed to use this bot",
		local.NewTrans(local.Rus, "У вас нет доступа к этому боту"),
	)
	TextChatCreated = local.NewSet(
		"Started %s",
		local.NewTrans(local.Rus, "Начат %s"),
	)
	TextChatSwitched = local.NewSet(
		"Switched to %s",
		local.NewTrans(local.Rus, "Переключено на %s"),
	)
	TextSelectChat = local.NewSet(
		"Your chats:",
		local.NewTrans(local.Rus, "Ваши чаты:"),
	)
	TextChatDeleted = local.NewSet(
		"Chat deleted. Current chat: %s",
		local.NewTrans(local.Rus, "Чат удалён. Текущий чат: %s"),
	)
	TextDeleteFailed = local.NewSet(
		"Failed to delete the chat on the server: %s",
		local.NewTrans(local.Rus, "Не удалось удалить чат на сервере: %s"),
	)
	TextServerChats = local.NewSet(
		"The server holds %d chats.\n%s",
		local.NewTrans(local.Rus, "На сервере %d чатов.\n%s"),
	)
	TextServerError = local.NewSet(
		"Something wrong with me. Try later",
		local.NewTrans(local.Rus, "Что-то пошло не так. Попробуйте позже"),
	)
	TextSendInProgress = local.NewSet(
		"Wait for the previous answer",
		local.NewTrans(local.Rus, "Дождитесь предыдущего ответа"),
	)
)

// SessionFactory opens the client session of one Telegram user.
type SessionFactory func(ctx context.Context, telegramID int64) (*SessionUsecase, error)

type TelegramUsecaseDeps struct {
	Bot        *api.BotAPI
	NewSession SessionFactory
	Logger     *zap.Logger
}

// TelegramUsecase hosts one client chat store per Telegram user.
type TelegramUsecase struct {
	TelegramUsecaseDeps
	cfg          config.Telegram
	allowedUsers map[int64]struct{}

	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

// sessionEntry is filled on first use; a failed load leaves it empty for the next update.
type sessionEntry struct {
	mu      sync.Mutex
	session *SessionUsecase
}

func NewTelegramUsecase(cfg config.Telegram, deps TelegramUsecaseDeps) (*TelegramUsecase, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	allowedUsers := make(map[int64]struct{}, len(cfg.AllowedTelegramID))
	for _, userID := range cfg.AllowedTelegramID {
		allowedUsers[userID] = struct{}{}
	}

	_, err := deps.Bot.Request(
		api.NewSetMyCommands(
			[]api.BotCommand{
				{
					Command:     CommandHelp,
					Description: "Get help",
				},
				{
					Command:     CommandNew,
					Description: "Start a new chat",
				},
				{
					Command:     CommandChats,
					Description: "List and switch chats",
				},
				{
					Command:     CommandDelete,
					Description: "Delete the current chat",
				},
			}...,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return &TelegramUsecase{
		TelegramUsecaseDeps: deps,
		cfg:                 cfg,
		allowedUsers:        allowedUsers,
		sessions:            make(map[int64]*sessionEntry),
	}, nil
}

// Run handles updates until ctx is cancelled. Updates are processed
// concurrently; a user's overlapping sends are rejected by their session.
func (t *TelegramUsecase) Run(ctx context.Context) error {
	u := api.NewUpdate(0)
	u.Timeout = 60
	updates := t.Bot.GetUpdatesChan(u)

	wg := conc.NewWaitGroup()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Go(
				func() {
					t.handleUpdate(ctx, update)
				},
			)
		}
	}
}

func (t *TelegramUsecase) handleUpdate(ctx context.Context, update api.Update) {
	if update.Message != nil {
		if err := t.handleMessage(ctx, update.Message); err != nil {
			t.Logger.Error("error handling message", zap.Error(err))
		}
	}
	if update.CallbackQuery != nil {
		if err := t.handleCallbackQuery(ctx, update.CallbackQuery); err != nil {
			t.Logger.Error("error handling callback query", zap.Error(err))
		}
	}
}

func (t *TelegramUsecase) handleCallbackQuery(ctx context.Context, query *api.CallbackQuery) error {
	if _, err := t.Bot.Request(api.NewCallback(query.ID, "")); err != nil {
		return fmt.Errorf("failed to request callback: %w", err)
	}
	if query.Message == nil || !strings.HasPrefix(query.Data, callbackSwitchPrefix) {
		return nil
	}
	chatID := query.Message.Chat.ID
	lang := userLanguage(query.From)
	if !t.isAllowed(chatID) {
		t.sendMessageAndHandleErr(chatID, TextUserNoAccess.Text(lang))
		return nil
	}

	session, err := t.session(ctx, chatID)
	if err != nil {
		t.sendMessageAndHandleErr(chatID, TextServerError.Text(lang))
		return err
	}
	if err = session.Store.Switch(ctx, strings.TrimPrefix(query.Data, callbackSwitchPrefix)); err != nil {
		t.sendMessageAndHandleErr(chatID, TextServerError.Text(lang))
		return fmt.Errorf("failed to switch chat: %w", err)
	}
	t.sendMessageAndHandleErr(chatID, TextChatSwitched.Format(lang, session.Store.ActiveChat().Title))
	return nil
}

func (t *TelegramUsecase) handleMessage(ctx context.Context, message *api.Message) error {
	chatID := message.Chat.ID
	lang := userLanguage(message.From)

	if !t.isAllowed(chatID) {
		t.sendMessageAndHandleErr(chatID, TextUserNoAccess.Text(lang))
		return nil
	}
	session, err := t.session(ctx, chatID)
	if err != nil {
		t.sendMessageAndHandleErr(chatID, TextServerError.Text(lang))
		return err
	}

	if message.IsCommand() {
		return t.handleCommand(ctx, session, chatID, lang, message.Command())
	}

	var (
		reply   string
		sendErr error
	)
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			if _, err := t.Bot.Request(api.NewChatAction(chatID, api.ChatTyping)); err != nil {
				t.Logger.Warn("failed to send chat action", zap.Error(err))
			}
		},
	)
	wg.Go(
		func() {
			reply, sendErr = session.Send(ctx, message.Text)
		},
	)
	wg.Wait()

	switch {
	case errors.Is(sendErr, ErrEmptyMessage):
		return nil
	case errors.Is(sendErr, ErrSendInProgress):
		t.sendMessageAndHandleErr(chatID, TextSendInProgress.Text(lang))
		return nil
	case sendErr != nil:
		t.sendMessageAndHandleErr(chatID, reply)
		return fmt.Errorf("failed to send message to chat server: %w", sendErr)
	}
	t.sendMessageAndHandleErr(chatID, reply)
	return nil
}

func (t *TelegramUsecase) handleCommand(
	ctx context.Context,
	session *SessionUsecase,
	chatID int64,
	lang local.Language,
	command string,
) error {
	switch command {
	case CommandStart:
		t.sendMessageAndHandleErr(chatID, TextCommandStart.Text(lang))
	case CommandHelp:
		t.sendMessageAndHandleErr(chatID, TextCommandHelp.Text(lang))
	case CommandNew:
		chat, err := session.Store.Create(ctx)
		if err != nil {
			t.Logger.Warn("failed to persist new chat", zap.Int64("telegram_id", chatID), zap.Error(err))
		}
		t.sendMessageAndHandleErr(chatID, TextChatCreated.Format(lang, chat.Title))
	case CommandChats:
		if err := t.sendChatsKeyboard(session, chatID, lang); err != nil {
			return fmt.Errorf("failed to send chats keyboard: %w", err)
		}
	case CommandDelete:
		if err := session.DeleteActive(ctx); err != nil {
			t.sendMessageAndHandleErr(chatID, TextDeleteFailed.Format(lang, rootMessage(err)))
			return fmt.Errorf("failed to delete chat: %w", err)
		}
		t.sendMessageAndHandleErr(chatID, TextChatDeleted.Format(lang, session.Store.ActiveChat().Title))
	case CommandServer:
		chatIDs, err := session.ListServerChats(ctx)
		if err != nil {
			t.sendMessageAndHandleErr(chatID, TextServerError.Text(lang))
			return err
		}
		t.sendMessageAndHandleErr(chatID, TextServerChats.Format(lang, len(chatIDs), strings.Join(chatIDs, "\n")))
	default:
		t.sendMessageAndHandleErr(chatID, TextCommandUnknown.Text(lang))
	}
	return nil
}

func (t *TelegramUsecase) sendChatsKeyboard(session *SessionUsecase, chatID int64, lang local.Language) error {
	activeChatID := session.Store.ActiveChatID()
	rows := make([][]api.InlineKeyboardButton, 0)
	for _, chat := range session.Store.ListChats() {
		title := chat.Title
		if chat.ChatID == activeChatID {
			title = activeChatMarker + title
		}
		rows = append(
			rows, []api.InlineKeyboardButton{
				api.NewInlineKeyboardButtonData(title, callbackSwitchPrefix+chat.ChatID),
			},
		)
	}

	msg := api.NewMessage(chatID, TextSelectChat.Text(lang))
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(rows...)
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to bot: %w", err)
	}
	return nil
}

func (t *TelegramUsecase) session(ctx context.Context, telegramID int64) (*SessionUsecase, error) {
	t.mu.Lock()
	entry, ok := t.sessions[telegramID]
	if !ok {
		entry = &sessionEntry{}
		t.sessions[telegramID] = entry
	}
	t.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session == nil {
		session, err := t.NewSession(ctx, telegramID)
		if err != nil {
			return nil, fmt.Errorf("failed to open session for %d: %w", telegramID, err)
		}
		entry.session = session
	}
	return entry.session, nil
}

func (t *TelegramUsecase) isAllowed(telegramID int64) bool {
	if len(t.allowedUsers) == 0 {
		return true
	}
	_, ok := t.allowedUsers[telegramID]
	return ok
}

func (t *TelegramUsecase) sendMessageAndHandleErr(chatID int64, message string) {
	if message == "" {
		return
	}
	if _, err := t.Bot.Send(api.NewMessage(chatID, message)); err != nil {
		t.Logger.Warn("failed to send message to bot", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func userLanguage(user *api.User) local.Language {
	if user == nil {
		return local.Eng
	}
	return local.ParseLanguage(user.LanguageCode)
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
