package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/intervalmon/intervalmon/pkg/utils"
)

// Status returns the engine state machine snapshot
func (h *Handlers) Status(c *gin.Context) {
	utils.SendSuccessWithMeta(c, h.engine.Snapshot(), gin.H{
		"websocket": h.hub.GetStats(),
	})
}

// Window returns the current monitoring window boundaries
func (h *Handlers) Window(c *gin.Context) {
	utils.SendSuccess(c, h.engine.CurrentWindow())
}
