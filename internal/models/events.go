package models

import (
	"encoding/json"
	"time"
)

// Push event types delivered over the persistent connection.
const (
	EventNewMessage      = "new_message"
	EventMessageRead     = "message_read"
	EventTyping          = "typing"
	EventNewConversation = "new_conversation"
	EventConnected       = "connected"
	EventPing            = "ping"
)

// PushEvent is the wire envelope for inbound push events, tagged on Type.
type PushEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is the wire envelope for client-to-server sends.
type OutboundEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// NewMessageData is the payload of a new_message event.
type NewMessageData struct {
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
}

// MessageReadData is the payload of a message_read event.
type MessageReadData struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	ReadAt         time.Time `json:"read_at"`
}

// TypingData is the payload of a typing event, both inbound and outbound.
type TypingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	IsTyping       bool   `json:"is_typing"`
}

// NewConversationData is the payload of a new_conversation event.
type NewConversationData struct {
	ConversationID string `json:"conversation_id"`
}
