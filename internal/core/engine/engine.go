// Package engine drives the interval monitoring state machine: it ticks the
// showtime scheduler, feeds delivered events through the match engine and
// decides when a timeout alert is emitted, honoring suppression and the
// optional repeat timeout.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/intervalmon/intervalmon/internal/core/holidays"
	"github.com/intervalmon/intervalmon/internal/core/match"
	"github.com/intervalmon/intervalmon/internal/core/metrics"
	"github.com/intervalmon/intervalmon/internal/core/showtime"
)

// holidayRetryBackoff is the minimum spacing between holiday fetch attempts
// after a failure.
const holidayRetryBackoff = 10 * time.Second

// defaultTimeout applies when no timeout interval is configured.
const defaultTimeout = 60 * time.Second

// HolidayProvider returns the public holidays for a local calendar date.
type HolidayProvider interface {
	Holidays(ctx context.Context, date time.Time) ([]holidays.Holiday, error)
}

// HolidayConfig controls holiday retrieval and filtering.
type HolidayConfig struct {
	Enabled         bool
	Country         string
	TypeMatch       []string
	LocaleMatch     []string
	IncludeBank     bool
	IncludeWeekends bool
	RetryCount      int
}

// Config is the immutable engine configuration, supplied once at start.
type Config struct {
	AppName           string
	Schedule          showtime.Config
	Timeout           time.Duration
	Suppression       time.Duration
	RepeatTimeout     bool
	RepeatSuppression time.Duration
	Rules             *match.RuleSet
	AlertMessage      string
	AlertDescription  string
	AlertLevel        logrus.Level
	Tags              []string
	IncludeApp        bool
	Diagnostics       bool
	Holidays          HolidayConfig
}

// Alert is the payload summary handed to the alert sink.
type Alert struct {
	ID          string    `json:"id"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Matched     int       `json:"matched"`
	ErrorCount  int       `json:"error_count"`
	Time        time.Time `json:"time"`
}

// Snapshot is a read-only view of engine state for diagnostics and the API.
type Snapshot struct {
	State              string          `json:"state"`
	Window             showtime.Window `json:"window"`
	Is24Hour           bool            `json:"is_24_hour"`
	Matched            int             `json:"matched"`
	ErrorCount         int             `json:"error_count"`
	LastCheck          time.Time       `json:"last_check"`
	LastLog            time.Time       `json:"last_log"`
	SkippedShowtime    bool            `json:"skipped_showtime"`
	CannotMatchAlerted bool            `json:"cannot_match_alerted"`
	HolidayRefreshing  bool            `json:"holiday_refreshing"`
	Holidays           int             `json:"holidays"`
	Conditions         string          `json:"conditions"`
	LastAlert          *Alert          `json:"last_alert,omitempty"`
}

// Engine is the top-level controller. The ticker and the event-delivery
// callback both mutate scheduling and counter state, so every entry point
// serializes through one mutex.
type Engine struct {
	cfg      Config
	logger   *logrus.Logger
	alerts   Sink
	diags    Sink
	provider HolidayProvider
	metrics  *metrics.Collector
	clock    func() time.Time

	mu        sync.Mutex
	sched     *showtime.Scheduler
	state     State
	counters  Counters
	lastAlert *Alert

	cron    *cron.Cron
	running bool
}

// New validates the configuration and builds an engine. The alert and
// diagnostic sinks may be nil, in which case emissions go through the
// logger.
func New(cfg Config, logger *logrus.Logger, alerts, diags Sink, provider HolidayProvider, collector *metrics.Collector) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Rules == nil || cfg.Rules.Len() == 0 {
		return nil, fmt.Errorf("at least one property match rule is required")
	}
	if cfg.Timeout <= 0 {
		logger.WithField("default", defaultTimeout).Warn("No timeout interval configured, using default")
		cfg.Timeout = defaultTimeout
	}
	if cfg.AlertMessage == "" {
		cfg.AlertMessage = "An event timeout has occurred!"
	}
	if cfg.Holidays.Enabled && cfg.Holidays.RetryCount <= 0 {
		cfg.Holidays.RetryCount = 10
	}
	if cfg.Holidays.Enabled && !holidays.ValidCountry(cfg.Holidays.Country) {
		logger.WithField("country", cfg.Holidays.Country).
			Warn("Could not parse country to a valid region, holiday retrieval disabled")
		cfg.Holidays.Enabled = false
	}
	if provider == nil {
		cfg.Holidays.Enabled = false
	}
	if alerts == nil {
		alerts = NewLogSink(logger)
	}
	if diags == nil {
		diags = NewLogSink(logger)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		alerts:   alerts,
		diags:    diags,
		provider: provider,
		metrics:  collector,
		clock:    time.Now,
	}
	e.sched = showtime.New(cfg.Schedule, e.clock().UTC(), logger)

	if cfg.Diagnostics {
		logger.WithFields(logrus.Fields{
			"conditions":   cfg.Rules.Conditions(),
			"timeout":      cfg.Timeout,
			"suppression":  cfg.Suppression,
			"window_start": e.sched.Window().Start,
			"window_end":   e.sched.Window().End,
			"days_of_week": e.sched.DaysOfWeek(),
		}).Debug("Engine configured")
	}

	return e, nil
}

// Start begins the 1 Hz tick source.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine is already running")
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		),
	)
	if _, err := c.AddFunc("* * * * * *", func() { e.OnTick(e.clock().UTC()) }); err != nil {
		return fmt.Errorf("failed to schedule tick: %v", err)
	}
	c.Start()

	e.cron = c
	e.running = true
	e.logger.WithField("timeout", e.cfg.Timeout).Info("Monitoring engine started")

	return nil
}

// Stop halts the tick source. A holiday fetch in flight is abandoned.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return fmt.Errorf("engine is not running")
	}

	e.cron.Stop()
	e.running = false
	e.logger.Info("Monitoring engine stopped")

	return nil
}

// OnTick advances the state machine. It is invoked once per second by the
// tick source, and directly by tests.
func (e *Engine) OnTick(nowUtc time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.Ticks.Inc()
	}

	localDate := e.localDate(nowUtc)
	e.maybeRefreshHolidays(nowUtc, localDate)

	if e.sched.InWindow(nowUtc) {
		e.tickInside(nowUtc)
	} else {
		e.tickOutside(nowUtc)
	}

	// Boundaries are only recomputed while the window is closed and no
	// holiday refresh is in flight
	if e.state == StateIdle && !e.sched.InWindow(nowUtc) && e.sched.Stale(nowUtc) && !e.counters.IsUpdating {
		e.sched.Rollover(nowUtc, false)
		if e.cfg.Diagnostics {
			w := e.sched.Window()
			e.diag(logrus.DebugLevel, "UTC day rollover", logrus.Fields{
				"window_start": w.Start,
				"window_end":   w.End,
			})
		}
	}
}

func (e *Engine) tickInside(now time.Time) {
	if e.state == StateIdle {
		if e.sched.Excluded() {
			if !e.counters.SkippedShowtime {
				e.counters.SkippedShowtime = true
				e.diag(logrus.DebugLevel, "Skipping showtime, day is excluded by weekday or day-of-month rules", logrus.Fields{
					"window_start": e.sched.Window().Start,
					"window_end":   e.sched.Window().End,
				})
			}
			return
		}
		if e.counters.IsUpdating || e.counters.HolidayError {
			// Matching is deferred, not skipped, until holiday data resolves
			return
		}

		e.state = StateArmed
		e.counters.LastCheck = now
		if e.metrics != nil {
			e.metrics.ShowtimeActive.Set(1)
		}
		w := e.sched.Window()
		e.diag(logrus.DebugLevel, "UTC start time reached, monitoring for matches", logrus.Fields{
			"conditions": e.cfg.Rules.Conditions(),
			"timeout":    e.cfg.Timeout,
			"window_end": w.End,
		})
	}

	elapsed := now.Sub(e.counters.LastCheck)
	alertDue := elapsed > e.cfg.Timeout &&
		(e.counters.Matched == 0 || (e.cfg.RepeatTimeout && e.counters.Matched == e.counters.LastMatched))

	if alertDue {
		if e.state == StateAlerted && now.Sub(e.counters.LastLog) < e.cfg.Suppression {
			if e.metrics != nil {
				e.metrics.AlertsSuppressed.Inc()
			}
		} else {
			e.emitAlert(now)
			e.counters.LastLog = now
			e.state = StateAlerted
		}
	} else if e.cfg.RepeatTimeout && e.state == StateAlerted {
		// New matches resumed, the alarm clears itself
		e.state = StateArmed
	}

	e.counters.LastMatched = e.counters.Matched
}

func (e *Engine) tickOutside(now time.Time) {
	if e.state == StateArmed || e.state == StateAlerted {
		e.diag(logrus.DebugLevel, "UTC end time reached, no longer monitoring", logrus.Fields{
			"matched": e.counters.Matched,
		})
		if e.metrics != nil {
			e.metrics.ShowtimeActive.Set(0)
		}
	}

	// The single reset point for per-window state
	e.state = StateIdle
	e.counters.reset(now)
}

// OnEvent feeds one delivered event into the match engine.
func (e *Engine) OnEvent(primaryText string, payload *match.Payload) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.EventsReceived.Inc()
	}

	if e.state != StateArmed && e.state != StateAlerted {
		return
	}
	if e.counters.Matched > 0 && !e.cfg.RepeatTimeout {
		return
	}
	if payload == nil {
		payload = match.NewPayload()
	}

	now := e.clock().UTC()
	matched, missing := match.Evaluate(primaryText, payload, e.cfg.Rules)

	if len(missing) > 0 && !e.counters.CannotMatchAlerted {
		e.counters.CannotMatchAlerted = true
		e.diag(logrus.WarnLevel, "Cannot evaluate match, configured properties are missing from the event", logrus.Fields{
			"missing":    missing,
			"conditions": e.cfg.Rules.Conditions(),
		})
	}
	if !matched {
		return
	}

	e.counters.Matched++
	e.counters.LastCheck = now
	if e.metrics != nil {
		e.metrics.EventsMatched.Inc()
	}

	if !e.cfg.RepeatTimeout {
		if e.counters.Matched == 1 {
			e.diag(logrus.DebugLevel, "Successfully matched, further matches will not be logged", logrus.Fields{
				"conditions": e.cfg.Rules.Conditions(),
			})
		}
		return
	}

	// Under repeat timeout, match logging is bounded by its own suppression
	// interval so bursty traffic cannot flood the stream
	if e.counters.Matched == 1 || now.Sub(e.counters.LastMatchLog) > e.cfg.RepeatSuppression {
		e.counters.LastMatchLog = now
		e.diag(logrus.DebugLevel, "Successfully matched", logrus.Fields{
			"matched":    e.counters.Matched,
			"conditions": e.cfg.Rules.Conditions(),
		})
	}
}

// CurrentWindow returns the current monitoring window boundaries.
func (e *Engine) CurrentWindow() showtime.Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Window()
}

// Snapshot returns a view of the engine's state for diagnostics.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:              e.state.String(),
		Window:             e.sched.Window(),
		Is24Hour:           e.sched.Is24Hour(),
		Matched:            e.counters.Matched,
		ErrorCount:         e.counters.ErrorCount,
		LastCheck:          e.counters.LastCheck,
		LastLog:            e.counters.LastLog,
		SkippedShowtime:    e.counters.SkippedShowtime,
		CannotMatchAlerted: e.counters.CannotMatchAlerted,
		HolidayRefreshing:  e.counters.IsUpdating,
		Holidays:           len(e.sched.Holidays()),
		Conditions:         e.cfg.Rules.Conditions(),
		LastAlert:          e.lastAlert,
	}
}

func (e *Engine) emitAlert(now time.Time) {
	message := e.cfg.AlertMessage
	if e.cfg.IncludeApp && e.cfg.AppName != "" {
		message = "[" + e.cfg.AppName + "] - " + message
	}

	alert := &Alert{
		ID:          uuid.New().String(),
		Level:       e.cfg.AlertLevel.String(),
		Message:     message,
		Description: e.cfg.AlertDescription,
		Tags:        e.cfg.Tags,
		Matched:     e.counters.Matched,
		ErrorCount:  e.counters.ErrorCount,
		Time:        now,
	}
	e.lastAlert = alert

	fields := logrus.Fields{
		"alert_id":    alert.ID,
		"matched":     alert.Matched,
		"error_count": alert.ErrorCount,
		"conditions":  e.cfg.Rules.Conditions(),
	}
	if len(e.cfg.Tags) > 0 {
		fields["tags"] = e.cfg.Tags
	}

	e.alerts.Emit(e.cfg.AlertLevel, message, e.cfg.AlertDescription, fields)
	if e.metrics != nil {
		e.metrics.AlertsEmitted.Inc()
	}
}

// localDate returns the local calendar day for now, or the configured test
// date override.
func (e *Engine) localDate(nowUtc time.Time) time.Time {
	loc := e.cfg.Schedule.Location
	if loc == nil {
		loc = time.Local
	}
	if e.cfg.Schedule.TestDate != "" {
		if date, err := time.ParseInLocation(showtime.TestDateFormat, e.cfg.Schedule.TestDate, loc); err == nil {
			return date
		}
	}
	local := nowUtc.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// maybeRefreshHolidays triggers an asynchronous holiday fetch when the local
// calendar day has advanced. Fetches never overlap, failures are retried
// with a minimum backoff, and an exhausted retry budget degrades to an empty
// holiday set instead of stalling scheduling.
func (e *Engine) maybeRefreshHolidays(nowUtc, localDate time.Time) {
	if !e.cfg.Holidays.Enabled {
		e.counters.LastDay = localDate
		return
	}
	if !e.counters.LastDay.Before(localDate) || e.counters.IsUpdating {
		return
	}

	if e.counters.HolidayError {
		if nowUtc.Sub(e.counters.LastError) < holidayRetryBackoff {
			return
		}
		if e.counters.ErrorCount >= e.cfg.Holidays.RetryCount {
			e.sched.SetHolidays(nil)
			e.counters.LastDay = localDate
			e.counters.HolidayError = false
			e.counters.ErrorCount = 0
			e.diag(logrus.WarnLevel, "Holiday retry budget exhausted, continuing without holiday data", logrus.Fields{
				"country": e.cfg.Holidays.Country,
			})
			return
		}
	}

	e.counters.IsUpdating = true
	go e.refreshHolidays(localDate)
}

func (e *Engine) refreshHolidays(localDate time.Time) {
	list, err := e.provider.Holidays(context.Background(), localDate)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.counters.IsUpdating = false
	if err != nil {
		e.counters.ErrorCount++
		e.counters.HolidayError = true
		e.counters.LastError = e.clock().UTC()
		if e.metrics != nil {
			e.metrics.HolidayFetchErrors.Inc()
		}
		e.diag(logrus.DebugLevel, "Error retrieving holidays, public holidays cannot be evaluated", logrus.Fields{
			"error": err.Error(),
			"try":   e.counters.ErrorCount,
			"of":    e.cfg.Holidays.RetryCount,
		})
		return
	}

	valid := holidays.Validate(list, e.cfg.Holidays.TypeMatch, e.cfg.Holidays.LocaleMatch,
		e.cfg.Holidays.IncludeBank, e.cfg.Holidays.IncludeWeekends)
	e.sched.SetHolidays(valid)
	e.counters.LastDay = localDate
	e.counters.ErrorCount = 0
	e.counters.HolidayError = false

	// Apply the fresh exclusion set to the current boundaries without
	// disturbing an open window
	e.sched.Rollover(e.clock().UTC(), true)

	e.diag(logrus.DebugLevel, "Holidays retrieved and validated", logrus.Fields{
		"retrieved": len(list),
		"validated": len(valid),
		"date":      localDate.Format("2006-01-02"),
	})
}

func (e *Engine) diag(level logrus.Level, message string, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	if e.cfg.IncludeApp && e.cfg.AppName != "" {
		fields["app"] = e.cfg.AppName
	}
	e.diags.Emit(level, message, "", fields)
}
