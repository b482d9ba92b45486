package cache

import "studenthub-sync/internal/models"

// Tx is the view a mutation gets of the store. It is only valid for
// the duration of the mutation's Fn.
type Tx struct {
	store *Store
}

// Post returns the current post value.
func (tx *Tx) Post(id string) (models.Post, bool) {
	p, ok := tx.store.posts[id]
	return p, ok
}

// SetPost stores a post value.
func (tx *Tx) SetPost(p models.Post) {
	tx.store.posts[p.ID] = p
}

// Conversation returns the current conversation value.
func (tx *Tx) Conversation(id string) (models.Conversation, bool) {
	c, ok := tx.store.conversations[id]
	return c, ok
}

// SetConversation stores a conversation value.
func (tx *Tx) SetConversation(c models.Conversation) {
	tx.store.conversations[c.ID] = c
}

// DeleteConversation removes a conversation and its message list.
func (tx *Tx) DeleteConversation(id string) {
	delete(tx.store.conversations, id)
	delete(tx.store.messages, id)
}

// Messages returns the conversation's message list. The returned slice
// must not be appended to in place; use SetMessages with a fresh slice.
func (tx *Tx) Messages(conversationID string) []models.Message {
	return tx.store.messages[conversationID]
}

// SetMessages replaces the conversation's message list.
func (tx *Tx) SetMessages(conversationID string, msgs []models.Message) {
	tx.store.messages[conversationID] = msgs
}

// Snapshot captures the named entities so they can be restored exactly.
// Missing entities are recorded as absent and restoring deletes them.
func (tx *Tx) Snapshot(keys ...Key) Snapshot {
	snap := Snapshot{}
	for _, key := range keys {
		entry := snapshotEntry{key: key}
		switch key.Kind {
		case KindPost:
			if p, ok := tx.store.posts[key.ID]; ok {
				entry.present = true
				entry.post = p
			}
		case KindConversation:
			if c, ok := tx.store.conversations[key.ID]; ok {
				entry.present = true
				entry.conversation = c
			}
		case KindMessages:
			if msgs, ok := tx.store.messages[key.ID]; ok {
				entry.present = true
				entry.messages = make([]models.Message, len(msgs))
				copy(entry.messages, msgs)
			}
		}
		snap.entries = append(snap.entries, entry)
	}
	return snap
}

func (tx *Tx) restore(snap Snapshot) {
	for _, entry := range snap.entries {
		switch entry.key.Kind {
		case KindPost:
			if entry.present {
				tx.store.posts[entry.key.ID] = entry.post
			} else {
				delete(tx.store.posts, entry.key.ID)
			}
		case KindConversation:
			if entry.present {
				tx.store.conversations[entry.key.ID] = entry.conversation
			} else {
				delete(tx.store.conversations, entry.key.ID)
			}
		case KindMessages:
			if entry.present {
				msgs := make([]models.Message, len(entry.messages))
				copy(msgs, entry.messages)
				tx.store.messages[entry.key.ID] = msgs
			} else {
				delete(tx.store.messages, entry.key.ID)
			}
		}
	}
}

// Snapshot holds the pre-mutation state of a set of entities. Each
// coordinator call captures its own snapshot, so a rollback returns to
// the state just before that call, never to an older one.
type Snapshot struct {
	entries []snapshotEntry
}

// Empty reports whether the snapshot captured nothing.
func (s Snapshot) Empty() bool { return len(s.entries) == 0 }

type snapshotEntry struct {
	key          Key
	present      bool
	post         models.Post
	conversation models.Conversation
	messages     []models.Message
}
