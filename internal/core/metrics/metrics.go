// Package metrics exposes Prometheus collectors for engine activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the engine's Prometheus metrics.
type Collector struct {
	Ticks              prometheus.Counter
	EventsReceived     prometheus.Counter
	EventsMatched      prometheus.Counter
	AlertsEmitted      prometheus.Counter
	AlertsSuppressed   prometheus.Counter
	HolidayFetchErrors prometheus.Counter
	ShowtimeActive     prometheus.Gauge
}

// New creates the collector and registers it with the given registerer.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervalmon_ticks_total",
			Help: "Scheduler ticks processed.",
		}),
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervalmon_events_received_total",
			Help: "Events delivered to the match engine.",
		}),
		EventsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervalmon_events_matched_total",
			Help: "Events that satisfied every match rule.",
		}),
		AlertsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervalmon_alerts_emitted_total",
			Help: "Timeout alerts emitted.",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervalmon_alerts_suppressed_total",
			Help: "Alerts withheld by the suppression interval.",
		}),
		HolidayFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervalmon_holiday_fetch_errors_total",
			Help: "Failed holiday provider fetches.",
		}),
		ShowtimeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intervalmon_showtime_active",
			Help: "Whether the monitoring window is currently armed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.Ticks, c.EventsReceived, c.EventsMatched,
			c.AlertsEmitted, c.AlertsSuppressed, c.HolidayFetchErrors, c.ShowtimeActive)
	}

	return c
}
