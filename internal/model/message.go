package model

type Role string

const (
	RoleSystem    = Role("system")
	RoleUser      = Role("user")
	RoleAssistant = Role("assistant")
)

// Message is one entry of a server-side history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Author string

const (
	AuthorMe  = Author("me")
	AuthorBot = Author("bot")
)

// ClientMessage is one entry of a client-side history.
type ClientMessage struct {
	Who  Author `json:"who"`
	Text string `json:"text"`
}
