// Package history bounds server-side chat histories.
package history

import "github.com/iamvkosarev/ai-multichat/internal/model"

// DefaultMaxTurns is the number of user+assistant pairs kept after the system message.
const DefaultMaxTurns = 20

// Trim keeps the leading system message (if any) followed by at most
// maxTurns*2 of the most recent non-system messages, in their original order.
// A non-positive maxTurns falls back to DefaultMaxTurns.
func Trim(messages []model.Message, maxTurns int) []model.Message {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	var system []model.Message
	if len(messages) > 0 && messages[0].Role == model.RoleSystem {
		system = messages[:1]
	}

	rest := make([]model.Message, 0, len(messages))
	for _, message := range messages {
		if message.Role != model.RoleSystem {
			rest = append(rest, message)
		}
	}

	maxMessages := maxTurns * 2
	if len(rest) > maxMessages {
		rest = rest[len(rest)-maxMessages:]
	}

	trimmed := make([]model.Message, 0, len(system)+len(rest))
	trimmed = append(trimmed, system...)
	return append(trimmed, rest...)
}
