package http_server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

const (
	MessageServerError  = "Server error"
	MessageChatNotFound = "Chat not found"
	MessageBadRequest   = "invalid request body"
	maxRequestBodyBytes = 1 << 20
)

type ChatService interface {
	SendMessage(ctx context.Context, chatID, message string) (string, error)
	DeleteChat(chatID string) error
	ListChats() []string
}

// Server is the HTTP transport of the session exchange.
type Server struct {
	chats  ChatService
	logger *zap.Logger
}

func NewServer(chats ChatService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chats:  chats,
		logger: logger,
	}
}

type SendMessageRequest struct {
	ChatID  *string `json:"chatId"`
	Message *string `json:"message"`
}

type SendMessageResponse struct {
	Reply string `json:"reply"`
}

type DeleteChatResponse struct {
	OK bool `json:"ok"`
}

type ListChatsResponse struct {
	ChatIDs []string `json:"chatIds"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleSendMessage)
	mux.HandleFunc("DELETE /api/chat/{$}", s.handleDeleteChat)
	mux.HandleFunc("DELETE /api/chat/{chatId}", s.handleDeleteChat)
	mux.HandleFunc("GET /api/chats", s.handleListChats)
	return mux
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body SendMessageRequest
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MessageBadRequest})
		return
	}
	if body.ChatID == nil || *body.ChatID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "chatId is required"})
		return
	}
	if body.Message == nil || *body.Message == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}

	reply, err := s.chats.SendMessage(r.Context(), *body.ChatID, *body.Message)
	if err != nil {
		var validationErr *model.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Message})
			return
		}
		s.logger.Error("failed to send message", zap.String("chat_id", *body.ChatID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: MessageServerError})
		return
	}
	writeJSON(w, http.StatusOK, SendMessageResponse{Reply: reply})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatId")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "chatId is required"})
		return
	}

	if err := s.chats.DeleteChat(chatID); err != nil {
		if errors.Is(err, model.ErrChatDoesNotExist) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: MessageChatNotFound})
			return
		}
		s.logger.Error("failed to delete chat", zap.String("chat_id", chatID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: MessageServerError})
		return
	}
	writeJSON(w, http.StatusOK, DeleteChatResponse{OK: true})
}

func (s *Server) handleListChats(w http.ResponseWriter, _ *http.Request) {
	chatIDs := s.chats.ListChats()
	if chatIDs == nil {
		chatIDs = []string{}
	}
	writeJSON(w, http.StatusOK, ListChatsResponse{ChatIDs: chatIDs})
}

// readJSON treats an empty body as an empty object.
func readJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
