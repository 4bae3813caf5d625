// Package handlers contains the HTTP handlers for the monitoring API.
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/intervalmon/intervalmon/internal/config"
	"github.com/intervalmon/intervalmon/internal/core/engine"
	"github.com/intervalmon/intervalmon/internal/websocket"
)

// Handlers holds the dependencies the HTTP handlers operate on.
type Handlers struct {
	cfg    *config.Config
	logger *logrus.Logger
	engine *engine.Engine
	hub    *websocket.Hub
}

// NewHandlers creates the handler set.
func NewHandlers(cfg *config.Config, logger *logrus.Logger, eng *engine.Engine, hub *websocket.Hub) *Handlers {
	return &Handlers{
		cfg:    cfg,
		logger: logger,
		engine: eng,
		hub:    hub,
	}
}
