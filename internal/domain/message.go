package domain

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry of an AI assistant conversation.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	RequestID string      `json:"requestId,omitempty"` // id of the user message a reply answers
	CreatedAt time.Time   `json:"timestamp"`
}

type MessageStore interface {
	AppendMessage(m *Message) error
	ListMessages(sessionID string) ([]Message, error)
	ClearMessages(sessionID string) error
	PruneMessages(keepPerSession int) (int64, error)
}
