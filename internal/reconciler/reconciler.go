package reconciler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/models"
	"studenthub-sync/internal/observability"
	"studenthub-sync/internal/typing"
)

// SnapshotFetcher pulls authoritative snapshots from the backend when
// incremental merge is not possible.
type SnapshotFetcher interface {
	FetchConversations(ctx context.Context) ([]models.Conversation, error)
	FetchMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// ReceiptSender acknowledges messages read in the active conversation.
type ReceiptSender interface {
	SendReadReceipt(conversationID, messageID string) error
}

// echoWindow bounds how old a pending message may be and still count
// as the echo of a send in flight.
const echoWindow = 30 * time.Second

// Reconciler consumes push events and merges them into the cache. It
// never raises user-visible errors: an event referencing unknown state
// is dropped and the next full fetch catches up.
type Reconciler struct {
	store    *cache.Store
	tracker  *typing.Tracker
	fetcher  SnapshotFetcher
	receipts ReceiptSender
	selfID   string
	now      func() time.Time

	mu         sync.Mutex
	activeConv string
}

// New builds a Reconciler. receipts may be nil to disable outbound
// read receipts.
func New(store *cache.Store, tracker *typing.Tracker, fetcher SnapshotFetcher, receipts ReceiptSender, selfID string) *Reconciler {
	return &Reconciler{
		store:    store,
		tracker:  tracker,
		fetcher:  fetcher,
		receipts: receipts,
		selfID:   selfID,
		now:      time.Now,
	}
}

// SetActiveConversation marks the conversation the user has open.
// Incoming messages there do not bump the unread count.
func (r *Reconciler) SetActiveConversation(conversationID string) {
	r.mu.Lock()
	r.activeConv = conversationID
	r.mu.Unlock()
}

func (r *Reconciler) active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeConv
}

// HandleEvent translates one push event into cache applies. It is the
// single subscriber wired to the event channel.
func (r *Reconciler) HandleEvent(ev models.PushEvent) {
	switch ev.Type {
	case models.EventNewMessage:
		var data models.NewMessageData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			log.Printf("drop malformed new_message: %v", err)
			return
		}
		r.applyNewMessage(data)

	case models.EventMessageRead:
		var data models.MessageReadData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			log.Printf("drop malformed message_read: %v", err)
			return
		}
		r.applyMessageRead(data)

	case models.EventTyping:
		var data models.TypingData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			log.Printf("drop malformed typing: %v", err)
			return
		}
		if data.UserID == r.selfID {
			return
		}
		if data.IsTyping {
			r.tracker.SetTyping(data.ConversationID, data.UserID, data.UserName)
		} else {
			r.tracker.ClearTyping(data.ConversationID, data.UserID)
		}

	case models.EventNewConversation, models.EventConnected:
		// No partial-knowledge representation for an unseen
		// conversation, and a reconnect may have missed anything: both
		// resolve with a full snapshot fetch.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := r.RefreshConversations(ctx); err != nil {
				log.Printf("conversation refresh failed: %v", err)
			}
		}()
	}
}

// applyNewMessage merges an incoming message. If it is the echo of a
// send in flight, the temp message is replaced in place; otherwise the
// message is inserted in order. The conversation's last_message moves
// and the unread count bumps unless the conversation is open or the
// sender is the local user.
func (r *Reconciler) applyNewMessage(data models.NewMessageData) {
	msg := data.Message
	if msg.ConversationID == "" {
		msg.ConversationID = data.ConversationID
	}
	activeConv := r.active()

	var stale, duplicate bool
	r.store.Apply(cache.Mutation{
		Name: "event_new_message",
		Keys: []cache.Key{cache.ConversationKey(data.ConversationID)},
		Fn: func(tx *cache.Tx) {
			conv, ok := tx.Conversation(data.ConversationID)
			if !ok {
				stale = true
				return
			}

			msgs := tx.Messages(data.ConversationID)

			if echoIdx := r.findEcho(msgs, msg); echoIdx >= 0 {
				updated := make([]models.Message, len(msgs))
				copy(updated, msgs)
				msg.Pending = false
				msg.Version = updated[echoIdx].Version
				updated[echoIdx] = msg
				tx.SetMessages(data.ConversationID, updated)
			} else {
				for _, existing := range msgs {
					if existing.ID == msg.ID {
						// Duplicate delivery of the same message.
						duplicate = true
						return
					}
				}
				tx.SetMessages(data.ConversationID, insertOrdered(msgs, msg))
				if msg.SenderID != r.selfID && data.ConversationID != activeConv {
					conv.UnreadCount++
				}
			}

			last := msg
			conv.LastMessage = &last
			conv.UpdatedAt = r.now()
			tx.SetConversation(conv)
		},
	})

	if stale {
		observability.IncStaleEvent(models.EventNewMessage)
		return
	}

	// Reading happens implicitly when the conversation is open. A
	// redelivered message was already acknowledged the first time.
	if duplicate {
		return
	}
	if r.receipts != nil && msg.SenderID != r.selfID && data.ConversationID == activeConv {
		if err := r.receipts.SendReadReceipt(data.ConversationID, msg.ID); err != nil {
			log.Printf("read receipt dropped: %v", err)
		}
	}
}

// findEcho locates a pending message from the local user with the same
/// content and a recent timestamp: the authoritative echo of a send in
// flight.
func (r *Reconciler) findEcho(msgs []models.Message, incoming models.Message) int {
	if incoming.SenderID != r.selfID {
		return -1
	}
	for i := range msgs {
		if !msgs[i].Pending || msgs[i].SenderID != r.selfID {
			continue
		}
		if msgs[i].Content == incoming.Content && r.now().Sub(msgs[i].CreatedAt) <= echoWindow {
			return i
		}
	}
	return -1
}

// insertOrdered places msg into the list keeping the created_at order
// with ID tie-break. Appends are the common case.
func insertOrdered(msgs []models.Message, msg models.Message) []models.Message {
	updated := make([]models.Message, len(msgs), len(msgs)+1)
	copy(updated, msgs)

	i := len(updated)
	for i > 0 && msg.Before(updated[i-1]) {
		i--
	}
	updated = append(updated, models.Message{})
	copy(updated[i+1:], updated[i:])
	updated[i] = msg
	return updated
}

// applyMessageRead flags a message as read. Receiving the same event
// twice leaves state identical to receiving it once; a message not
// cached yet is dropped and reconciled when its conversation loads.
func (r *Reconciler) applyMessageRead(data models.MessageReadData) {
	var stale bool
	r.store.Apply(cache.Mutation{
		Name: "event_message_read",
		Keys: []cache.Key{cache.ConversationKey(data.ConversationID)},
		Fn: func(tx *cache.Tx) {
			msgs := tx.Messages(data.ConversationID)
			idx := -1
			for i := range msgs {
				if msgs[i].ID == data.MessageID {
					idx = i
					break
				}
			}
			if idx < 0 {
				stale = true
				return
			}
			if msgs[idx].IsRead {
				return
			}

			updated := make([]models.Message, len(msgs))
			copy(updated, msgs)
			readAt := data.ReadAt
			updated[idx].IsRead = true
			updated[idx].ReadAt = &readAt
			tx.SetMessages(data.ConversationID, updated)

			if conv, ok := tx.Conversation(data.ConversationID); ok {
				if conv.LastMessage != nil && conv.LastMessage.ID == data.MessageID {
					last := updated[idx]
					conv.LastMessage = &last
				}
				tx.SetConversation(conv)
			}
		},
	})
	if stale {
		observability.IncStaleEvent(models.EventMessageRead)
	}
}

// LoadMessages replaces a conversation's history with the server's,
// keeping local messages with a send still in flight. Called when the
// user opens a conversation.
func (r *Reconciler) LoadMessages(ctx context.Context, conversationID string) error {
	history, err := r.fetcher.FetchMessages(ctx, conversationID)
	if err != nil {
		return err
	}

	r.store.Apply(cache.Mutation{
		Name: "load_messages",
		Keys: []cache.Key{cache.MessagesKey(conversationID)},
		Fn: func(tx *cache.Tx) {
			known := make(map[string]struct{}, len(history))
			for _, msg := range history {
				known[msg.ID] = struct{}{}
			}

			merged := make([]models.Message, len(history))
			copy(merged, history)
			for _, msg := range tx.Messages(conversationID) {
				if _, ok := known[msg.ID]; ok {
					continue
				}
				if msg.Pending {
					merged = insertOrdered(merged, msg)
				}
			}
			tx.SetMessages(conversationID, merged)
		},
	})
	return nil
}

// RefreshConversations replaces the cached conversation set with the
// authoritative snapshot. Conversations with a send in flight keep
// their local message lists; only entities the server knows about are
// rewritten.
func (r *Reconciler) RefreshConversations(ctx context.Context) error {
	convs, err := r.fetcher.FetchConversations(ctx)
	if err != nil {
		return err
	}

	r.store.Apply(cache.Mutation{
		Name: "refresh_conversations",
		Fn: func(tx *cache.Tx) {
			for _, conv := range convs {
				if cached, ok := tx.Conversation(conv.ID); ok {
					conv.Version = cached.Version
					conv.Pending = cached.Pending
				}
				tx.SetConversation(conv)
			}
		},
	})
	return nil
}
