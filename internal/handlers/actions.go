package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studenthub-sync/internal/api"
	"studenthub-sync/internal/coordinator"
	"studenthub-sync/internal/models"
	"studenthub-sync/internal/typing"
)

// ConversationView tracks which conversation the user has open and
// loads its history on demand.
type ConversationView interface {
	SetActiveConversation(conversationID string)
	LoadMessages(ctx context.Context, conversationID string) error
}

// ActionHandler drives the engine over local HTTP. Every route maps to
// one coordinator mutation or typing signal.
type ActionHandler struct {
	coord    *coordinator.Coordinator
	notifier *typing.Notifier
	view     ConversationView
}

// NewActionHandler builds the handler.
func NewActionHandler(coord *coordinator.Coordinator, notifier *typing.Notifier, view ConversationView) *ActionHandler {
	return &ActionHandler{coord: coord, notifier: notifier, view: view}
}

// Register wires the action routes onto the router.
func (h *ActionHandler) Register(router *gin.Engine) {
	router.POST("/actions/posts/:post_id/like", h.LikePost)
	router.POST("/actions/posts/:post_id/save", h.SavePost)
	router.POST("/actions/posts/:post_id/comments", h.AddComment)
	router.POST("/actions/conversations", h.CreateConversation)
	router.POST("/actions/conversations/:conversation_id/messages", h.SendMessage)
	router.POST("/actions/conversations/:conversation_id/read", h.MarkRead)
	router.POST("/actions/conversations/:conversation_id/pin", h.Pin)
	router.DELETE("/actions/conversations/:conversation_id/pin", h.Unpin)
	router.POST("/actions/conversations/:conversation_id/open", h.Open)
	router.POST("/actions/conversations/:conversation_id/close", h.Close)
	router.POST("/actions/conversations/:conversation_id/keystroke", h.Keystroke)
}

func (h *ActionHandler) LikePost(c *gin.Context) {
	h.respond(c, h.coord.LikePost(c.Request.Context(), c.Param("post_id")))
}

func (h *ActionHandler) SavePost(c *gin.Context) {
	h.respond(c, h.coord.SavePost(c.Request.Context(), c.Param("post_id")))
}

func (h *ActionHandler) AddComment(c *gin.Context) {
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.coord.AddComment(c.Request.Context(), c.Param("post_id"), req.Content, req.ParentID))
}

func (h *ActionHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.coord.CreateConversation(c.Request.Context(), req)
	if err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *ActionHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conversationID := c.Param("conversation_id")
	h.notifier.Stop(conversationID)
	id, err := h.coord.SendMessage(c.Request.Context(), conversationID, req)
	if err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *ActionHandler) MarkRead(c *gin.Context) {
	h.respond(c, h.coord.MarkRead(c.Request.Context(), c.Param("conversation_id")))
}

func (h *ActionHandler) Pin(c *gin.Context) {
	h.respond(c, h.coord.PinConversation(c.Request.Context(), c.Param("conversation_id")))
}

func (h *ActionHandler) Unpin(c *gin.Context) {
	h.respond(c, h.coord.UnpinConversation(c.Request.Context(), c.Param("conversation_id")))
}

func (h *ActionHandler) Open(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	h.view.SetActiveConversation(conversationID)
	if err := h.view.LoadMessages(c.Request.Context(), conversationID); err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ActionHandler) Close(c *gin.Context) {
	h.view.SetActiveConversation("")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ActionHandler) Keystroke(c *gin.Context) {
	h.notifier.Keystroke(c.Param("conversation_id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respond maps mutation outcomes onto HTTP statuses. A rejection keeps
// the upstream status; a network failure reads as bad gateway.
func (h *ActionHandler) respond(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	var apiErr *api.Error
	switch {
	case errors.Is(err, coordinator.ErrNotCached):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr) && apiErr.Kind == api.KindRejected:
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
	case api.IsNetwork(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
