package typing

import (
	"sync"
	"time"
)

// Sender carries the local user's typing intent to the server.
type Sender interface {
	SendTyping(conversationID string, isTyping bool) error
}

// Notifier debounces the local user's keystrokes: a burst collapses
// into a single typing=true send plus one delayed typing=false send
// after the idle window, never one send per keystroke. A send failure
// while disconnected is dropped; typing intent is ephemeral.
type Notifier struct {
	mu     sync.Mutex
	sender Sender
	idle   time.Duration
	timers map[string]*time.Timer
	active map[string]bool
}

// NewNotifier builds a Notifier with the given idle window.
func NewNotifier(sender Sender, idle time.Duration) *Notifier {
	return &Notifier{
		sender: sender,
		idle:   idle,
		timers: make(map[string]*time.Timer),
		active: make(map[string]bool),
	}
}

// Keystroke records typing activity in a conversation.
func (n *Notifier) Keystroke(conversationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.active[conversationID] {
		n.active[conversationID] = true
		_ = n.sender.SendTyping(conversationID, true)
	}

	if timer, ok := n.timers[conversationID]; ok {
		timer.Stop()
	}
	n.timers[conversationID] = time.AfterFunc(n.idle, func() {
		n.stop(conversationID)
	})
}

// Stop ends the typing indicator immediately, e.g. when the message is
// sent.
func (n *Notifier) Stop(conversationID string) {
	n.mu.Lock()
	if timer, ok := n.timers[conversationID]; ok {
		timer.Stop()
		delete(n.timers, conversationID)
	}
	n.mu.Unlock()
	n.stop(conversationID)
}

func (n *Notifier) stop(conversationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.active[conversationID] {
		return
	}
	delete(n.active, conversationID)
	delete(n.timers, conversationID)
	_ = n.sender.SendTyping(conversationID, false)
}
