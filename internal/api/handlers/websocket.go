package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/intervalmon/intervalmon/internal/websocket"
	"github.com/intervalmon/intervalmon/pkg/utils"
)

// WebSocketHandler upgrades the connection and registers the client with
// the hub
func (h *Handlers) WebSocketHandler(hub *websocket.Hub) gin.HandlerFunc {
	return websocket.HandleWebSocketGin(hub)
}

// WebSocketStats returns hub statistics
func (h *Handlers) WebSocketStats(c *gin.Context) {
	utils.SendSuccess(c, h.hub.GetStats())
}
