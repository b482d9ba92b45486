package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/models"
	"studenthub-sync/internal/observability"
)

// SendMessage appends an optimistic message with a client-generated ID
// and confirms it with the backend. The confirmed message replaces the
// temp one in place: same position, ID swapped, pending cleared. If the
// websocket echo already replaced it, the commit is a no-op.
func (c *Coordinator) SendMessage(ctx context.Context, conversationID string, req models.SendMessageRequest) (string, error) {
	ctx, span := otel.Tracer("studenthub-sync/coordinator").Start(ctx, "mutation.send_message")
	span.SetAttributes(attribute.String("conversation.id", conversationID))
	defer span.End()

	if req.Type == "" {
		req.Type = models.MessageText
	}

	tempID := "tmp-" + uuid.NewString()
	var (
		snap  cache.Snapshot
		found bool
	)
	c.store.Apply(cache.Mutation{
		Name:  "send_message",
		Local: true,
		Keys:  []cache.Key{cache.ConversationKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			conv, ok := tx.Conversation(conversationID)
			if !ok {
				return
			}
			found = true
			snap = tx.Snapshot(cache.ConversationKey(conversationID), cache.MessagesKey(conversationID))

			optimistic := models.Message{
				ID:             tempID,
				ConversationID: conversationID,
				SenderID:       c.selfID,
				SenderName:     c.selfName,
				Type:           req.Type,
				Content:        req.Content,
				FileURL:        req.FileURL,
				FileName:       req.FileName,
				FileSize:       req.FileSize,
				Pending:        true,
				CreatedAt:      c.now(),
			}

			msgs := tx.Messages(conversationID)
			updated := make([]models.Message, 0, len(msgs)+1)
			updated = append(updated, msgs...)
			updated = append(updated, optimistic)
			tx.SetMessages(conversationID, updated)

			last := optimistic
			conv.LastMessage = &last
			conv.UpdatedAt = optimistic.CreatedAt
			tx.SetConversation(conv)
		},
	})
	if !found {
		return "", fmt.Errorf("send message to %s: %w", conversationID, ErrNotCached)
	}

	confirmed, err := c.client.SendMessage(ctx, conversationID, req)
	if err != nil {
		c.rollback(ctx, "send_message", snap, err)
		return "", err
	}

	c.store.Apply(cache.Mutation{
		Name: "send_message_commit",
		Keys: []cache.Key{cache.ConversationKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			replaceTempMessage(tx, conversationID, tempID, confirmed)
		},
	})
	observability.IncMutation("send_message", "committed")
	return confirmed.ID, nil
}

// replaceTempMessage swaps the temp-ID message for its authoritative
// counterpart, preserving position. Used by both the REST commit and
// the echo reconciliation; whichever runs second finds nothing to do.
func replaceTempMessage(tx *cache.Tx, conversationID, tempID string, confirmed models.Message) {
	confirmed.Pending = false

	msgs := tx.Messages(conversationID)
	replaced := false
	updated := make([]models.Message, len(msgs))
	copy(updated, msgs)
	for i := range updated {
		if updated[i].ID == tempID {
			confirmed.Version = updated[i].Version
			updated[i] = confirmed
			replaced = true
			break
		}
		if updated[i].ID == confirmed.ID {
			// Already reconciled by the other path.
			return
		}
	}
	if !replaced {
		updated = append(updated, confirmed)
	}
	tx.SetMessages(conversationID, updated)

	if conv, ok := tx.Conversation(conversationID); ok {
		if conv.LastMessage != nil && (conv.LastMessage.ID == tempID || conv.LastMessage.ID == confirmed.ID) {
			last := confirmed
			conv.LastMessage = &last
		}
		conv.Pending = false
		tx.SetConversation(conv)
	}
}

// MarkRead zeroes the unread count and flags incoming messages as read.
// The confirm response carries no payload, so the optimistic state is
// final on success.
func (c *Coordinator) MarkRead(ctx context.Context, conversationID string) error {
	var (
		snap  cache.Snapshot
		found bool
	)
	c.store.Apply(cache.Mutation{
		Name:  "mark_read",
		Local: true,
		Keys:  []cache.Key{cache.ConversationKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			conv, ok := tx.Conversation(conversationID)
			if !ok {
				return
			}
			found = true
			snap = tx.Snapshot(cache.ConversationKey(conversationID), cache.MessagesKey(conversationID))

			conv.UnreadCount = 0
			tx.SetConversation(conv)

			now := c.now()
			msgs := tx.Messages(conversationID)
			updated := make([]models.Message, len(msgs))
			copy(updated, msgs)
			for i := range updated {
				if updated[i].SenderID != c.selfID && !updated[i].IsRead {
					readAt := now
					updated[i].IsRead = true
					updated[i].ReadAt = &readAt
				}
			}
			tx.SetMessages(conversationID, updated)
		},
	})
	if !found {
		return fmt.Errorf("mark read %s: %w", conversationID, ErrNotCached)
	}

	if err := c.client.MarkRead(ctx, conversationID); err != nil {
		c.rollback(ctx, "mark_read", snap, err)
		return err
	}

	c.store.Apply(cache.Mutation{
		Name: "mark_read_commit",
		Keys: []cache.Key{cache.ConversationKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			if conv, ok := tx.Conversation(conversationID); ok {
				conv.Pending = false
				tx.SetConversation(conv)
			}
		},
	})
	observability.IncMutation("mark_read", "committed")
	return nil
}

// PinConversation pins a conversation.
func (c *Coordinator) PinConversation(ctx context.Context, conversationID string) error {
	return c.setPinned(ctx, conversationID, true)
}

// UnpinConversation removes the pin.
func (c *Coordinator) UnpinConversation(ctx context.Context, conversationID string) error {
	return c.setPinned(ctx, conversationID, false)
}

func (c *Coordinator) setPinned(ctx context.Context, conversationID string, pinned bool) error {
	kind := "pin_conversation"
	if !pinned {
		kind = "unpin_conversation"
	}

	var (
		snap  cache.Snapshot
		found bool
	)
	c.store.Apply(cache.Mutation{
		Name:  kind,
		Local: true,
		Keys:  []cache.Key{cache.ConversationKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			conv, ok := tx.Conversation(conversationID)
			if !ok {
				return
			}
			found = true
			snap = tx.Snapshot(cache.ConversationKey(conversationID))
			conv.IsPinned = pinned
			tx.SetConversation(conv)
		},
	})
	if !found {
		return fmt.Errorf("%s %s: %w", kind, conversationID, ErrNotCached)
	}

	var err error
	if pinned {
		err = c.client.PinConversation(ctx, conversationID)
	} else {
		err = c.client.UnpinConversation(ctx, conversationID)
	}
	if err != nil {
		c.rollback(ctx, kind, snap, err)
		return err
	}

	c.store.Apply(cache.Mutation{
		Name: kind + "_commit",
		Keys: []cache.Key{cache.ConversationKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			if conv, ok := tx.Conversation(conversationID); ok {
				conv.Pending = false
				tx.SetConversation(conv)
			}
		},
	})
	observability.IncMutation(kind, "committed")
	return nil
}

// CreateConversation has no optimistic representation: the engine
// cannot partially know a conversation it has never seen, so it
// creates it remotely and pulls the authoritative list.
func (c *Coordinator) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (string, error) {
	id, err := c.client.CreateConversation(ctx, req)
	if err != nil {
		observability.IncMutation("create_conversation", "failed")
		return "", err
	}

	if c.refresh != nil {
		if err := c.refresh(ctx); err != nil {
			// The conversation exists server-side; the next connected or
			// new_conversation event retries the refresh.
			return id, nil
		}
	}
	observability.IncMutation("create_conversation", "committed")
	return id, nil
}
