package http_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iamvkosarev/ai-multichat/internal/model"
)

const maxResponseBodyBytes = 1 << 20

// APIError is a non-2xx answer of the chat server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Is lets a 404 match model.ErrChatDoesNotExist.
func (e *APIError) Is(target error) bool {
	return target == model.ErrChatDoesNotExist && e.StatusCode == http.StatusNotFound
}

// Client talks to the chat server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Reply string `json:"reply"`
}

type listChatsResponse struct {
	ChatIDs []string `json:"chatIds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) SendMessage(ctx context.Context, chatID, message string) (string, error) {
	var resp sendMessageResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", sendMessageRequest{ChatID: chatID, Message: message}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/"+url.PathEscape(chatID), nil, nil)
}

func (c *Client) ListChats(ctx context.Context) ([]string, error) {
	var resp listChatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ChatIDs, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach chat server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	if respBody == nil {
		return nil
	}
	if err = json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
