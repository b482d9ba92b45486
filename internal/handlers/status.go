package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/observability"
	"studenthub-sync/internal/projector"
	"studenthub-sync/internal/typing"
)

// ChannelState reports the live connection.
type ChannelState interface {
	Connected() bool
}

// StatusHandler exposes the engine's local state over HTTP for
// debugging and scraping.
type StatusHandler struct {
	store   *cache.Store
	channel ChannelState
	tracker *typing.Tracker
}

// NewStatusHandler builds the handler.
func NewStatusHandler(store *cache.Store, channel ChannelState, tracker *typing.Tracker) *StatusHandler {
	return &StatusHandler{store: store, channel: channel, tracker: tracker}
}

// Router builds the gin engine with health, status and metrics routes.
func (h *StatusHandler) Router(serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", h.Healthz)
	router.GET("/status", h.Status)
	router.GET("/status/conversations", h.Conversations)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Healthz is a liveness probe.
func (h *StatusHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports connectivity and cache population.
func (h *StatusHandler) Status(c *gin.Context) {
	posts, conversations, messages := h.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"connected": h.channel.Connected(),
		"cache": gin.H{
			"posts":         posts,
			"conversations": conversations,
			"messages":      messages,
		},
	})
}

// Conversations returns the projected conversation list as the UI
// would render it, with live typing users per conversation.
func (h *StatusHandler) Conversations(c *gin.Context) {
	convs := projector.Project(h.store.Conversations())

	type entry struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		UnreadCount int      `json:"unread_count"`
		IsPinned    bool     `json:"is_pinned"`
		Typing      []string `json:"typing,omitempty"`
	}
	out := make([]entry, 0, len(convs))
	for _, conv := range convs {
		users := h.tracker.TypingUsers(conv.ID)
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Name)
		}
		out = append(out, entry{
			ID:          conv.ID,
			Name:        conv.Name,
			UnreadCount: conv.UnreadCount,
			IsPinned:    conv.IsPinned,
			Typing:      names,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}
