package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/intervalmon/intervalmon/internal/api/handlers"
	"github.com/intervalmon/intervalmon/internal/api/middleware"
	"github.com/intervalmon/intervalmon/internal/config"
	"github.com/intervalmon/intervalmon/internal/core/engine"
	"github.com/intervalmon/intervalmon/internal/websocket"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, logger *logrus.Logger, eng *engine.Engine, wsHub *websocket.Hub, registry *prometheus.Registry) *gin.Engine {
	// Set gin mode based on config
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if cfg.Security.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))
	}

	// Rate limiting
	rateLimiter := middleware.NewRateLimiter(100, 200)
	router.Use(rateLimiter.RateLimitMiddleware())

	// Initialize handlers
	h := handlers.NewHandlers(cfg, logger, eng, wsHub)

	// Public routes
	router.GET("/health", h.Health)

	if cfg.Monitoring.Prometheus.Enabled && registry != nil {
		router.GET(cfg.Monitoring.Prometheus.Path,
			gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// WebSocket endpoint
	router.GET("/ws", h.WebSocketHandler(wsHub))

	// API v1 routes
	api := router.Group("/api/v1")
	{
		api.POST("/events", h.IngestEvent)
		api.GET("/status", h.Status)
		api.GET("/window", h.Window)

		ws := api.Group("/websocket")
		{
			ws.GET("/stats", h.WebSocketStats)
		}
	}

	return router
}
