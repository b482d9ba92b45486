package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"studenthub-sync/internal/models"
	"studenthub-sync/internal/observability"
)

// State is the channel connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ErrNotConnected is returned by Send while the channel is down.
// Callers treat outbound typing intent as lost, not queued.
var ErrNotConnected = errors.New("event channel not connected")

// Config holds the channel's connection parameters.
type Config struct {
	URL                string
	Token              string
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxReconnects      int
	HeartbeatInterval  time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 5
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
}

// Channel owns the single persistent connection to the server. Inbound
// events are dispatched to subscribers in arrival order from one read
// loop, so no event reaches a handler twice and no two handlers see
// events reordered. On every successful connect the channel emits a
// synthetic connected event so the reconciler can fetch what it missed.
type Channel struct {
	cfg    Config
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	intentional bool
	rootCtx     context.Context
	cancel      context.CancelFunc

	handlerMu    sync.RWMutex
	handlers     []func(models.PushEvent)
	connHandlers []func(bool)
}

// New builds a Channel from config.
func New(cfg Config) *Channel {
	cfg.defaults()
	return &Channel{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		state:  StateDisconnected,
	}
}

// Subscribe registers an inbound event handler. Handlers run on the
// read loop goroutine and must not block for long.
func (c *Channel) Subscribe(h func(models.PushEvent)) {
	c.handlerMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlerMu.Unlock()
}

// OnConnectionChange registers a connectivity callback.
func (c *Channel) OnConnectionChange(h func(connected bool)) {
	c.handlerMu.Lock()
	c.connHandlers = append(c.connHandlers, h)
	c.handlerMu.Unlock()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the channel is up. Derived state for the
// passive connectivity indicator, never an error path.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Connect dials the server and starts the read and heartbeat loops.
// Reconnects after a drop are automatic; Connect only needs to be
// called once.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.intentional = false
	c.rootCtx = ctx
	c.mu.Unlock()

	_, span := otel.Tracer("studenthub-sync/channel").Start(ctx, "ws.connect")
	defer span.End()

	url := c.cfg.URL
	if c.cfg.Token != "" {
		url = fmt.Sprintf("%s?token=%s", url, c.cfg.Token)
	}
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("dial event channel: %w", err)
	}

	recon := newReconnector(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, c.cfg.MaxReconnects)
	c.startConn(conn, recon)
	return nil
}

// startConn installs the connection and spins up its loops. Each
// connection owns its own context, derived from the Connect context,
// so the previous connection's loops stop when it is replaced.
func (c *Channel) startConn(conn *websocket.Conn, recon *reconnector) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	connCtx, cancel := context.WithCancel(c.rootCtx)
	c.conn = conn
	c.state = StateConnected
	c.cancel = cancel
	c.mu.Unlock()

	recon.markConnected()
	observability.SetWSConnected(true)
	c.notifyConnection(true)

	// Synthetic connected event: lets the reconciler run a catch-up
	// fetch covering whatever was pushed while disconnected.
	c.dispatch(models.PushEvent{Type: models.EventConnected})

	go c.readLoop(conn, recon)
	go c.heartbeatLoop(connCtx)
}

// Disconnect closes the connection and stops reconnecting.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	c.intentional = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	observability.SetWSConnected(false)
	c.notifyConnection(false)

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// Send writes an outbound event. Fails fast while disconnected.
func (c *Channel) Send(ev models.OutboundEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.state != StateConnected {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	observability.IncWSEvent(ev.Type, "out")
	return nil
}

// SendTyping sends the local user's typing intent.
func (c *Channel) SendTyping(conversationID string, isTyping bool) error {
	return c.Send(models.OutboundEvent{
		Type: models.EventTyping,
		Data: models.TypingData{ConversationID: conversationID, IsTyping: isTyping},
	})
}

// SendReadReceipt reports a message as read over the channel.
func (c *Channel) SendReadReceipt(conversationID, messageID string) error {
	return c.Send(models.OutboundEvent{
		Type: models.EventMessageRead,
		Data: models.MessageReadData{ConversationID: conversationID, MessageID: messageID},
	})
}

func (c *Channel) readLoop(conn *websocket.Conn, recon *reconnector) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.intentional {
				c.mu.Unlock()
				return
			}
			c.state = StateDisconnected
			c.conn = nil
			// Stops this connection's heartbeat loop.
			if c.cancel != nil {
				c.cancel()
				c.cancel = nil
			}
			rootCtx := c.rootCtx
			c.mu.Unlock()

			observability.SetWSConnected(false)
			c.notifyConnection(false)
			log.Printf("event channel dropped: %v", err)

			c.scheduleReconnect(rootCtx, recon)
			return
		}

		var ev models.PushEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("malformed push event: %v", err)
			continue
		}
		observability.IncWSEvent(ev.Type, "in")
		c.dispatch(ev)
	}
}

// heartbeatLoop pings until its own connection's context is cancelled.
// It must not key off the shared connected state: after a reconnect
// that state is true again and would keep a stale loop alive.
func (c *Channel) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(models.OutboundEvent{Type: models.EventPing}); err != nil {
				return
			}
		}
	}
}

// scheduleReconnect retries with capped exponential backoff until the
// attempt budget runs out. Failures are logged, never surfaced as
// blocking errors.
func (c *Channel) scheduleReconnect(ctx context.Context, recon *reconnector) {
	for recon.shouldReconnect() {
		delay := recon.nextDelay()
		log.Printf("event channel reconnecting in %s (attempt %d)", delay, recon.attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		if c.intentional {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		observability.IncWSReconnect()

		url := c.cfg.URL
		if c.cfg.Token != "" {
			url = fmt.Sprintf("%s?token=%s", url, c.cfg.Token)
		}
		conn, _, err := c.dialer.DialContext(ctx, url, nil)
		if err != nil {
			c.mu.Lock()
			c.state = StateDisconnected
			c.mu.Unlock()
			log.Printf("event channel reconnect failed: %v", err)
			continue
		}

		c.startConn(conn, recon)
		return
	}
	log.Printf("event channel gave up after %d reconnect attempts", recon.attempt)
}

// dispatch invokes subscribers in registration order, sequentially, on
// the calling goroutine. A single physical message is therefore
// delivered at most once to each handler.
func (c *Channel) dispatch(ev models.PushEvent) {
	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (c *Channel) notifyConnection(connected bool) {
	c.handlerMu.RLock()
	handlers := c.connHandlers
	c.handlerMu.RUnlock()
	for _, h := range handlers {
		h(connected)
	}
}
