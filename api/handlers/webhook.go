package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onboarding-gateway/backend/internal/event"
	"github.com/onboarding-gateway/backend/internal/registry"
	"github.com/onboarding-gateway/backend/internal/repository"
)

// WebhookHandler accepts onboarding events from the backend producer and
// turns the actionable ones into registry prompts.
type WebhookHandler struct {
	registry *registry.Registry
	events   *repository.EventRepository
}

// NewWebhookHandler creates a new WebhookHandler. The event repository may
// be nil; auditing is then skipped.
func NewWebhookHandler(reg *registry.Registry, events *repository.EventRepository) *WebhookHandler {
	return &WebhookHandler{
		registry: reg,
		events:   events,
	}
}

// Handle handles POST /webhook. Well-formed events are always acknowledged
// with 200, whether or not a live session was addressed; the producer is
// never told about a miss.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	res, err := event.Decode(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case res.Prompt != nil:
		log.Printf("webhook %s: sending to %d", res.Trigger, res.Prompt.SessionID)
		h.registry.Prompt(res.Prompt.SessionID, res.Prompt.Payload)
	default:
		log.Printf("webhook %s: no prompt (onboardingId=%s success=%t)",
			res.Trigger, res.OnboardingID, res.Success)
	}

	if h.events != nil {
		if _, err := h.events.Record(c.Request.Context(), res); err != nil {
			// Auditing never affects the producer-facing response.
			log.Printf("failed to record webhook event: %v", err)
		}
	}

	c.Status(http.StatusOK)
}

// RegisterRoutes registers the webhook route on the router.
func (h *WebhookHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhook", h.Handle)
}
