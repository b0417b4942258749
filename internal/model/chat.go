package model

// ServerChat is the trimmed history the server keeps for one chat id.
// Messages[0] is always the system message.
type ServerChat struct {
	ChatID   string
	Messages []Message
}

type ClientChat struct {
	ChatID   string          `json:"id"`
	Title    string          `json:"title"`
	Messages []ClientMessage `json:"messages"`
}

// ClientState is the whole durable client blob. Order keeps chat ids in
// creation order so the fallback after a delete is deterministic.
type ClientState struct {
	ActiveChatID string                 `json:"activeChatId"`
	Chats        map[string]*ClientChat `json:"chats"`
	Order        []string               `json:"order"`
}
