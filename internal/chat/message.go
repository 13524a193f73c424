package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a thread. A message stays mutable only while
// Partial is true; the accumulator flips it exactly once.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Partial is true while streamed deltas are still being applied.
	Partial bool `json:"partial,omitempty"`
	// Stopped is true when generation was cancelled before completion.
	Stopped bool `json:"stopped,omitempty"`
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Thread is a named conversation owned by the backend. The client only ever
// caches these; threads are never created locally.
type Thread struct {
	ID                 string    `json:"thread_id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
}
