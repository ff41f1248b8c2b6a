package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onboarding-gateway/backend/internal/registry"
)

// HealthHandler reports process liveness and the live session count.
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.registry.Count(),
	})
}

// RegisterRoutes registers the health route on the router.
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
}
