package cache

import (
	"sync"

	"studenthub-sync/internal/models"
	"studenthub-sync/internal/observability"
)

// Kind names the entity families the store holds.
type Kind string

const (
	KindPost         Kind = "post"
	KindConversation Kind = "conversation"
	KindMessages     Kind = "messages"
)

// Key addresses one entity (or one conversation's message list).
type Key struct {
	Kind Kind
	ID   string
}

// PostKey addresses a feed post.
func PostKey(id string) Key { return Key{Kind: KindPost, ID: id} }

// ConversationKey addresses a conversation.
func ConversationKey(id string) Key { return Key{Kind: KindConversation, ID: id} }

// MessagesKey addresses the ordered message list of a conversation.
func MessagesKey(conversationID string) Key { return Key{Kind: KindMessages, ID: conversationID} }

// Mutation is the only way state changes. Fn runs with the store lock
// held; Keys name the entities whose version is bumped afterwards.
// Local marks mutations that originate from a user action rather than
// a server event, which flags the touched entities as pending.
type Mutation struct {
	Name  string
	Keys  []Key
	Local bool
	Fn    func(tx *Tx)
}

// Store is the optimistic cache. All mutations funnel through Apply,
// which serializes them; every other component either reads copies or
// submits mutations. Values handed out share comment-tree and
// participant pointers, so mutation code must replace rather than edit
// nested nodes in place.
type Store struct {
	mu            sync.RWMutex
	posts         map[string]models.Post
	conversations map[string]models.Conversation
	messages      map[string][]models.Message

	subMu       sync.RWMutex
	subscribers []func()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		posts:         make(map[string]models.Post),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

// Apply runs the mutation under the store's serialization point and
// notifies subscribers afterwards.
func (s *Store) Apply(mut Mutation) {
	s.mu.Lock()
	tx := &Tx{store: s}
	if mut.Fn != nil {
		mut.Fn(tx)
	}
	for _, key := range mut.Keys {
		s.bump(key, mut.Local)
	}
	s.mu.Unlock()

	observability.IncCacheApply(mut.Name)
	s.notify()
}

// Restore puts entities back exactly as they were captured.
func (s *Store) Restore(snap Snapshot) {
	s.Apply(Mutation{
		Name: "restore",
		Fn:   func(tx *Tx) { tx.restore(snap) },
	})
}

// Subscribe registers a callback invoked after every apply. Callbacks
// must not call Apply.
func (s *Store) Subscribe(fn func()) {
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

func (s *Store) notify() {
	s.subMu.RLock()
	subs := s.subscribers
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// bump advances the version of the touched entity. Called with the
// write lock held.
func (s *Store) bump(key Key, local bool) {
	switch key.Kind {
	case KindPost:
		if p, ok := s.posts[key.ID]; ok {
			p.Version++
			if local {
				p.Pending = true
			}
			s.posts[key.ID] = p
		}
	case KindConversation, KindMessages:
		if c, ok := s.conversations[key.ID]; ok {
			c.Version++
			if local {
				c.Pending = true
			}
			s.conversations[key.ID] = c
		}
	}
}

// Post returns a copy of the post, if cached.
func (s *Store) Post(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return p, ok
}

// Conversation returns a copy of the conversation, if cached.
func (s *Store) Conversation(id string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	return c, ok
}

// Conversations returns copies of all cached conversations, unordered.
func (s *Store) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	return out
}

// Messages returns a copy of a conversation's ordered message list.
func (s *Store) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Stats reports entity counts for the status endpoint.
func (s *Store) Stats() (posts, conversations, messages int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		messages += len(m)
	}
	return len(s.posts), len(s.conversations), messages
}
