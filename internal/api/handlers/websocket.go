package handlers

import (
	"github.com/frostdev-ops/telemetry-backend-go/internal/websocket"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades the connection and attaches it to the hub
func (h *Handlers) WebSocketHandler() gin.HandlerFunc {
	return websocket.HandleWebSocketGin(h.wsHub)
}

// WebSocketStats returns hub statistics
func (h *Handlers) WebSocketStats(c *gin.Context) {
	utils.SendSuccess(c, h.wsHub.GetStats())
}
