package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intervalmon/intervalmon/internal/adapters/abstractapi"
	"github.com/intervalmon/intervalmon/internal/api"
	"github.com/intervalmon/intervalmon/internal/config"
	"github.com/intervalmon/intervalmon/internal/core/dates"
	"github.com/intervalmon/intervalmon/internal/core/engine"
	"github.com/intervalmon/intervalmon/internal/core/match"
	"github.com/intervalmon/intervalmon/internal/core/metrics"
	"github.com/intervalmon/intervalmon/internal/core/showtime"
	"github.com/intervalmon/intervalmon/internal/websocket"
	"github.com/intervalmon/intervalmon/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	for _, note := range cfg.Normalize() {
		log.Warn(note)
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Build the match rule set
	rules := match.NewRuleSet()
	for i, property := range cfg.Monitor.Properties {
		key, value := match.Rule(i+1, property.Name, property.Match)
		if !rules.Add(key, value) && key != "" {
			log.WithField("property", key).Warn("Ignoring duplicate match property")
		}
	}

	// Initialize holiday retrieval if enabled
	var provider engine.HolidayProvider
	if cfg.Holidays.Enabled {
		provider = abstractapi.New(cfg.Holidays.APIKey, cfg.Holidays.Country,
			cfg.Monitor.Location(), log)
	}

	// Register engine metrics
	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	// Alerts and diagnostics go to the log and to connected clients
	alerts := engine.MultiSink{
		engine.NewLogSink(log),
		engine.NewHubSink(wsHub, websocket.MessageTypeAlert),
	}
	diags := engine.MultiSink{
		engine.NewLogSink(log),
		engine.NewHubSink(wsHub, websocket.MessageTypeDiagnostic),
	}

	// Normalize guarantees both times parse in one of the clock formats
	startFormat, _ := dates.DetectFormat(cfg.Monitor.StartTime)
	endFormat, _ := dates.DetectFormat(cfg.Monitor.EndTime)

	eng, err := engine.New(engine.Config{
		AppName: cfg.App.Name,
		Schedule: showtime.Config{
			StartTime:   cfg.Monitor.StartTime,
			EndTime:     cfg.Monitor.EndTime,
			StartFormat: startFormat,
			EndFormat:   endFormat,
			DaysOfWeek:  cfg.Monitor.DaysOfWeek,
			IncludeDays: cfg.Monitor.IncludeDays,
			ExcludeDays: cfg.Monitor.ExcludeDays,
			TestDate:    cfg.Monitor.TestDate,
			Location:    cfg.Monitor.Location(),
		},
		Timeout:           cfg.Monitor.TimeoutDuration(),
		Suppression:       cfg.Monitor.SuppressionDuration(),
		RepeatTimeout:     cfg.Monitor.RepeatTimeout,
		RepeatSuppression: cfg.Monitor.RepeatSuppressionDuration(),
		Rules:             rules,
		AlertMessage:      cfg.Alert.Message,
		AlertDescription:  cfg.Alert.Description,
		AlertLevel:        logger.ParseLevel(cfg.Alert.Level),
		Tags:              cfg.Alert.Tags,
		IncludeApp:        cfg.App.IncludeApp,
		Diagnostics:       cfg.App.Diagnostics,
		Holidays: engine.HolidayConfig{
			Enabled:         cfg.Holidays.Enabled,
			Country:         cfg.Holidays.Country,
			TypeMatch:       cfg.Holidays.Match,
			LocaleMatch:     cfg.Holidays.LocaleMatch,
			IncludeBank:     cfg.Holidays.IncludeBank,
			IncludeWeekends: cfg.Holidays.IncludeWeekends,
			RetryCount:      cfg.Holidays.RetryCount,
		},
	}, log, alerts, diags, provider, collector)
	if err != nil {
		log.Fatal("Failed to initialize monitoring engine: ", err)
	}

	if err := eng.Start(); err != nil {
		log.Fatal("Failed to start monitoring engine: ", err)
	}

	// Initialize router
	router := api.NewRouter(cfg, log, eng, wsHub, registry)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Infof("Starting interval monitor on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := eng.Stop(); err != nil {
		log.WithError(err).Warn("Failed to stop monitoring engine gracefully")
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
