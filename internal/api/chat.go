package api

import (
	"context"
	"fmt"
	"net/http"

	"studenthub-sync/internal/models"
)

// FetchConversations loads the conversation snapshot.
func (c *Client) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// FetchMessages loads the full message history of a conversation.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	path := fmt.Sprintf("/api/chat/conversations/%s/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message and returns the confirmed message with
// its server-assigned ID.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req models.SendMessageRequest) (models.Message, error) {
	var msg models.Message
	path := fmt.Sprintf("/api/chat/conversations/%s/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead marks every message in the conversation as read for the
// current user. The response carries no authoritative payload.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/chat/conversations/%s/messages/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// CreateConversation creates a conversation and returns its ID.
func (c *Client) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations", req, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// PinConversation pins a conversation for the current user.
func (c *Client) PinConversation(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/chat/conversations/%s/pin", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// UnpinConversation removes the pin.
func (c *Client) UnpinConversation(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/chat/conversations/%s/pin", conversationID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
