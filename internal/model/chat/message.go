package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role tags the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is the wire shape the relays exchange with clients and upstream models.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is one transcript entry held by a client.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NewMessage stamps a message with a fresh id and the current time.
func NewMessage(role Role, content string) Message {
	return NewMessageWithPrefix(string(role), role, content)
}

// NewMessageWithPrefix is NewMessage with a caller-chosen id prefix.
func NewMessageWithPrefix(prefix string, role Role, content string) Message {
	return Message{
		ID:        fmt.Sprintf("%s-%s", prefix, uuid.NewString()),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Turn projects the message onto the wire shape.
func (m Message) Turn() Turn {
	return Turn{Role: m.Role, Content: m.Content}
}

// CompletionRequest is the body accepted by the chat relay.
type CompletionRequest struct {
	Messages []Turn `json:"messages"`
}
