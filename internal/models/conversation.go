package models

import "time"

// ConversationType distinguishes one-on-one chats from group chats.
type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

// Conversation is the cached view of a chat thread. LastMessage is a
// denormalized pointer and may lag behind the messages list.
type Conversation struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Name         string           `json:"name"`
	Course       *CourseInfo      `json:"course,omitempty"`
	Participants []Participant    `json:"participants,omitempty"`
	LastMessage  *Message         `json:"last_message,omitempty"`
	UnreadCount  int              `json:"unread_count"`
	IsPinned     bool             `json:"is_pinned"`
	Version      int64            `json:"-"`
	Pending      bool             `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Participant is a member of a conversation.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
}

// CourseInfo tags a conversation that belongs to a course group.
type CourseInfo struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateConversationRequest is the payload for creating a conversation.
type CreateConversationRequest struct {
	Type         ConversationType `json:"type"`
	Name         string           `json:"name,omitempty"`
	Participants []string         `json:"participants"`
}
