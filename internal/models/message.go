package models

import "time"

// MessageType enumerates the supported message kinds.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message is a single chat message. A message created optimistically
// carries a client-generated ID and Pending=true until the server echo
// or the REST confirmation swaps in the authoritative ID.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name,omitempty"`
	Type           MessageType `json:"message_type"`
	Content        string      `json:"content"`
	FileURL        string      `json:"file_url,omitempty"`
	FileName       string      `json:"file_name,omitempty"`
	FileSize       int64       `json:"file_size,omitempty"`
	IsRead         bool        `json:"is_read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	Version        int64       `json:"-"`
	Pending        bool        `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Before reports whether m sorts ahead of other within a conversation:
// by created_at, ties broken by id.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SendMessageRequest is the payload for sending a message.
type SendMessageRequest struct {
	Content  string      `json:"content"`
	Type     MessageType `json:"message_type"`
	FileURL  string      `json:"file_url,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	FileSize int64       `json:"file_size,omitempty"`
}
