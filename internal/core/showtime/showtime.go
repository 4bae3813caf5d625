// Package showtime owns the UTC start/end instants of the recurring
// monitoring window, including day rollover, holiday-aware rescheduling and
// day-of-week / day-of-month gating.
package showtime

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/intervalmon/intervalmon/internal/core/dates"
	"github.com/intervalmon/intervalmon/internal/core/holidays"
)

// TestDateFormat is the layout of the diagnostic date override.
const TestDateFormat = "2006-1-2"

// Window is the current or next monitoring interval. End is always after
// Start.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Config is the immutable schedule configuration the scheduler is fed with.
type Config struct {
	StartTime   string
	EndTime     string
	StartFormat string
	EndFormat   string
	DaysOfWeek  string
	IncludeDays string
	ExcludeDays string
	TestDate    string
	Location    *time.Location
}

// Scheduler computes and holds the monitoring window boundaries. It is not
// safe for concurrent use on its own; the engine serializes all access.
type Scheduler struct {
	cfg    Config
	logger *logrus.Logger

	start time.Time
	end   time.Time
	is24h bool

	daysOfWeek  []time.Weekday
	includeDays []int
	excludeDays []int
	holidays    []holidays.Holiday
}

// New creates a scheduler and computes the initial window relative to now.
func New(cfg Config, nowUtc time.Time, logger *logrus.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.StartFormat == "" {
		cfg.StartFormat = dates.FormatSeconds
	}
	if cfg.EndFormat == "" {
		cfg.EndFormat = dates.FormatSeconds
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Scheduler{cfg: cfg, logger: logger}
	local := nowUtc.In(cfg.Location)
	s.daysOfWeek = dates.DaysOfWeek(cfg.DaysOfWeek, cfg.StartTime, cfg.StartFormat, local)
	s.Rollover(nowUtc, false)

	return s
}

// reference returns the local date the window boundaries are parsed against:
// now's local calendar day, or the configured test-date override.
func (s *Scheduler) reference(nowUtc time.Time) time.Time {
	local := nowUtc.In(s.cfg.Location)
	if s.cfg.TestDate != "" {
		if date, err := time.ParseInLocation(TestDateFormat, s.cfg.TestDate, s.cfg.Location); err == nil {
			return date
		}
	}
	return local
}

// Rollover recomputes the window boundaries so that the window is in the
// future or currently active. A bare holiday refresh recomputes against the
// same day without pushing a currently-elapsed start forward, so an open
// window is not disturbed. The call is idempotent for an unchanged now and
// holiday set.
func (s *Scheduler) Rollover(nowUtc time.Time, holidayRefresh bool) {
	ref := s.reference(nowUtc)

	start, err := dates.AtTime(s.cfg.StartTime, s.cfg.StartFormat, ref)
	if err != nil {
		// Unparseable start leaves the previous boundaries standing
		s.logger.WithError(err).Warn("Cannot parse configured start time, keeping current window")
		return
	}
	end, err := dates.AtTime(s.cfg.EndTime, s.cfg.EndFormat, ref)
	if err != nil {
		s.logger.WithError(err).Warn("Cannot parse configured end time, keeping current window")
		return
	}
	start = start.UTC()
	end = end.UTC()

	// Equal start and end means the window is always on; such a window covers
	// the whole current day, so it never advances past now.
	s.is24h = end.Equal(start)

	if !s.is24h && start.Before(nowUtc) && !holidayRefresh {
		start = start.AddDate(0, 0, 1)
	}

	// A holiday on the computed start pushes the window forward a day; the
	// following day is re-checked once in case two exclusion intervals are
	// adjacent.
	for i := 0; i < 2; i++ {
		if !holidays.AnyContains(s.holidays, start) {
			break
		}
		start = start.AddDate(0, 0, 1)
	}

	if s.is24h {
		end = start.AddDate(0, 0, 1)
	} else {
		for !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}

	s.start = start
	s.end = end

	// Inclusions and exclusions resolve lazily against the month of the next
	// start
	s.includeDays = dates.DaysOfMonth(s.cfg.IncludeDays, s.cfg.StartTime, s.cfg.StartFormat, ref)
	s.excludeDays = dates.DaysOfMonth(s.cfg.ExcludeDays, s.cfg.StartTime, s.cfg.StartFormat, ref)
}

// Window returns the current window boundaries.
func (s *Scheduler) Window() Window {
	return Window{Start: s.start, End: s.end}
}

// Is24Hour reports whether the configured start and end collapsed into an
// always-on window.
func (s *Scheduler) Is24Hour() bool {
	return s.is24h
}

// InWindow reports whether the instant falls inside [start, end).
func (s *Scheduler) InWindow(nowUtc time.Time) bool {
	return !nowUtc.Before(s.start) && nowUtc.Before(s.end)
}

// Stale reports whether the boundaries need a rollover: the next start has
// already passed.
func (s *Scheduler) Stale(nowUtc time.Time) bool {
	return s.start.Before(nowUtc)
}

// Excluded reports whether today's window is suppressed by the weekday set
// or the include/exclude day-of-month lists. The window boundaries stand;
// only matching is skipped.
func (s *Scheduler) Excluded() bool {
	allowedDay := false
	for _, day := range s.daysOfWeek {
		if s.start.Weekday() == day {
			allowedDay = true
			break
		}
	}
	if !allowedDay {
		return true
	}

	if len(s.includeDays) > 0 && !containsDay(s.includeDays, s.start.Day()) {
		return true
	}
	return containsDay(s.excludeDays, s.start.Day())
}

// SetHolidays replaces the holiday exclusion set wholesale.
func (s *Scheduler) SetHolidays(list []holidays.Holiday) {
	s.holidays = list
}

// Holidays returns the current holiday exclusion set.
func (s *Scheduler) Holidays() []holidays.Holiday {
	return s.holidays
}

// DaysOfWeek returns the allowed UTC weekdays.
func (s *Scheduler) DaysOfWeek() []time.Weekday {
	return s.daysOfWeek
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
