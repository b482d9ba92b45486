package typing

import (
	"context"
	"sync"
	"time"

	"studenthub-sync/internal/observability"
)

// User is a live typing entry for display.
type User struct {
	UserID string
	Name   string
}

type entry struct {
	name      string
	expiresAt time.Time
}

// Tracker holds ephemeral typing state per conversation. Entries decay
// after the TTL; they are never persisted or reconciled against the
// server, only refreshed by incoming typing events and cleared by a
// stop-typing event or the timeout.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewTracker builds a Tracker with the given TTL.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		entries: make(map[string]map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetTyping refreshes a user's typing entry.
func (t *Tracker) SetTyping(conversationID, userID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conv, ok := t.entries[conversationID]
	if !ok {
		conv = make(map[string]entry)
		t.entries[conversationID] = conv
	}
	conv[userID] = entry{name: name, expiresAt: t.now().Add(t.ttl)}
	t.updateGauge()
}

// ClearTyping removes a user's entry immediately.
func (t *Tracker) ClearTyping(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conv, ok := t.entries[conversationID]; ok {
		delete(conv, userID)
		if len(conv) == 0 {
			delete(t.entries, conversationID)
		}
	}
	t.updateGauge()
}

// TypingUsers returns the users currently typing in a conversation.
// Expired entries are pruned on read, so a stale entry never shows up
// even between sweeps.
func (t *Tracker) TypingUsers(conversationID string) []User {
	t.mu.Lock()
	defer t.mu.Unlock()

	conv, ok := t.entries[conversationID]
	if !ok {
		return nil
	}

	now := t.now()
	var users []User
	for userID, e := range conv {
		if now.After(e.expiresAt) {
			delete(conv, userID)
			continue
		}
		users = append(users, User{UserID: userID, Name: e.name})
	}
	if len(conv) == 0 {
		delete(t.entries, conversationID)
	}
	t.updateGauge()
	return users
}

// Sweep removes every expired entry.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for convID, conv := range t.entries {
		for userID, e := range conv {
			if now.After(e.expiresAt) {
				delete(conv, userID)
			}
		}
		if len(conv) == 0 {
			delete(t.entries, convID)
		}
	}
	t.updateGauge()
}

// Run sweeps periodically until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// updateGauge reports the live entry count. Called with the lock held.
func (t *Tracker) updateGauge() {
	n := 0
	for _, conv := range t.entries {
		n += len(conv)
	}
	observability.SetTypingEntries(n)
}
