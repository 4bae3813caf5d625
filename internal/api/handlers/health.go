package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/intervalmon/intervalmon/pkg/utils"
)

// Health returns the health status of the service
func (h *Handlers) Health(c *gin.Context) {
	snapshot := h.engine.Snapshot()

	utils.SendSuccess(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "intervalmon",
		"state":     snapshot.State,
		"clients":   h.hub.GetClientCount(),
	})
}
