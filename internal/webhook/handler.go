package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"groupbot-gateway/internal/automation"
	"groupbot-gateway/internal/config"

	"github.com/gin-gonic/gin"
)

const SecretHeader = "X-Webhook-Secret"

// EventSink is the engine entry point.
type EventSink interface {
	Process(ctx context.Context, ev automation.Event) ([]automation.Match, error)
}

// Handler ingests platform-neutral events from other services.
type Handler struct {
	Config *config.Config
	Engine EventSink
}

func NewHandler(cfg *config.Config, engine EventSink) *Handler {
	return &Handler{
		Config: cfg,
		Engine: engine,
	}
}

// VerifySecret rejects requests without the shared secret. An empty
// WEBHOOK_SECRET disables the check.
func (h *Handler) VerifySecret(c *gin.Context) {
	secret := h.Config.WebhookSecret
	if secret == "" {
		c.Next()
		return
	}
	got := c.GetHeader(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	c.Next()
}

type groupFields struct {
	GroupID    string `json:"group_id" binding:"required"`
	GroupTitle string `json:"group_title"`
}

func (g groupFields) chat() automation.Chat {
	return automation.Chat{ID: g.GroupID, Title: g.GroupTitle}
}

type eventRequest struct {
	groupFields
	Name    string                 `json:"name" binding:"required"`
	Payload map[string]interface{} `json:"payload"`
}

type messageRequest struct {
	groupFields
	MessageID string          `json:"message_id"`
	Text      string          `json:"text" binding:"required"`
	Sender    automation.User `json:"sender"`
}

type memberRequest struct {
	groupFields
	User automation.User `json:"user"`
}

// HandleEvent ingests a named GenericEvent.
func (h *Handler) HandleEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.process(c, automation.GenericEvent{Chat: req.chat(), Name: req.Name, Payload: req.Payload})
}

// HandleMessage ingests a chat message from a non-Telegram bridge.
func (h *Handler) HandleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.process(c, automation.ChatMessage{
		Chat:      req.chat(),
		MessageID: req.MessageID,
		Text:      req.Text,
		Sender:    req.Sender,
	})
}

// HandleMember ingests a member join.
func (h *Handler) HandleMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.User.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user.id is required"})
		return
	}
	h.process(c, automation.NewMember{Chat: req.chat(), User: req.User})
}

func (h *Handler) process(c *gin.Context, ev automation.Event) {
	matches, err := h.Engine.Process(c.Request.Context(), ev)
	if errors.Is(err, automation.ErrEngineClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Error processing webhook %s event: %v", ev.Kind(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Webhook %s event for %s matched %d definitions", ev.Kind(), ev.GroupID(), len(matches))
	c.JSON(http.StatusAccepted, gin.H{"matched": len(matches)})
}
