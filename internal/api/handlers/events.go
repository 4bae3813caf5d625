package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intervalmon/intervalmon/internal/core/match"
	"github.com/intervalmon/intervalmon/pkg/utils"
)

// EventRequest is one delivered event. Property values of any JSON type are
// rendered to text before matching.
type EventRequest struct {
	Message    string                 `json:"message"`
	Properties map[string]interface{} `json:"properties"`
}

// IngestEvent feeds a delivered event into the monitoring engine
func (h *Handlers) IngestEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid event payload: "+err.Error())
		return
	}

	payload := match.NewPayload()
	for name, value := range req.Properties {
		payload.Set(name, renderValue(value))
	}

	h.engine.OnEvent(req.Message, payload)

	utils.SendAccepted(c, gin.H{
		"state": h.engine.Snapshot().State,
	})
}

func renderValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
