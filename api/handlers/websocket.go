// Package handlers provides the gateway's HTTP request handlers.
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/onboarding-gateway/backend/internal/registry"
	"github.com/onboarding-gateway/backend/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Anyone may connect; the id is the only addressing token.
		return true
	},
}

// WebSocketHandler upgrades /ws requests and hands the connection to a
// Session bound to the registry.
type WebSocketHandler struct {
	registry *registry.Registry
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(reg *registry.Registry) *WebSocketHandler {
	return &WebSocketHandler{registry: reg}
}

// Connect handles GET /ws.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	sess := ws.NewSession(conn, h.registry)
	go sess.Run()
}

// RegisterRoutes registers the WebSocket route on the router.
func (h *WebSocketHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.Connect)
}
