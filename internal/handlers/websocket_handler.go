package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"launchpad-backend/internal/services"
)

// PushHub websocket connection hub
type PushHub interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	GetActiveConnections() int
}

// WebSocketHandler exposes the push hub over gin
type WebSocketHandler struct {
	hub PushHub
}

func NewWebSocketHandler(hub PushHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the connection. Clients start subscribed to every topic
// and narrow it with {"action":"unsubscribe","topics":[...]}.
// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.hub.HandleWebSocket(c.Writer, c.Request)
}

// GetConnectionStatus GET /api/ws/status
func (h *WebSocketHandler) GetConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"connections": h.hub.GetActiveConnections(),
		"topics":      services.AllTopics,
	})
}
