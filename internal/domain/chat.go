package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole author of a chat message.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage single tutor exchange entry.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Language  Language  `json:"lang"`
	Timestamp time.Time `json:"ts"`
	// Fallback is set when Text is a static apology instead of model output.
	Fallback bool `json:"fallback,omitempty"`
}

// NewChatMessage creates a message with a fresh id.
func NewChatMessage(role ChatRole, text string, lang Language) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Language:  lang,
		Timestamp: time.Now().UTC(),
	}
}

// ChatMessageRecord message with its transcript index.
type ChatMessageRecord struct {
	Index   uint64      `json:"index"`
	Message ChatMessage `json:"message"`
}
