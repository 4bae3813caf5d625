package engine

import (
	"github.com/sirupsen/logrus"
)

// Sink receives alert or diagnostic emissions. Rendering and delivery are
// entirely the sink's concern; the engine only decides when to emit and with
// what payload summary.
type Sink interface {
	Emit(level logrus.Level, message, description string, fields logrus.Fields)
}

// LogSink writes emissions through a shared logrus logger.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a sink backed by the given logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(level logrus.Level, message, description string, fields logrus.Fields) {
	entry := s.logger.WithFields(fields)
	if description != "" {
		entry = entry.WithField("description", description)
	}
	entry.Log(level, message)
}

// Broadcaster pushes a typed payload to connected clients. The websocket hub
// satisfies this.
type Broadcaster interface {
	BroadcastMessage(messageType string, data interface{})
}

// HubSink forwards emissions to a broadcaster under a fixed message type.
type HubSink struct {
	hub         Broadcaster
	messageType string
}

// NewHubSink creates a sink that broadcasts emissions as messageType
// payloads.
func NewHubSink(hub Broadcaster, messageType string) *HubSink {
	return &HubSink{hub: hub, messageType: messageType}
}

func (s *HubSink) Emit(level logrus.Level, message, description string, fields logrus.Fields) {
	payload := map[string]interface{}{
		"level":   level.String(),
		"message": message,
	}
	if description != "" {
		payload["description"] = description
	}
	for key, value := range fields {
		payload[key] = value
	}
	s.hub.BroadcastMessage(s.messageType, payload)
}

// MultiSink fans one emission out to several sinks.
type MultiSink []Sink

func (s MultiSink) Emit(level logrus.Level, message, description string, fields logrus.Fields) {
	for _, sink := range s {
		sink.Emit(level, message, description, fields)
	}
}
