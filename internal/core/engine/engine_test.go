package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervalmon/intervalmon/internal/core/holidays"
	"github.com/intervalmon/intervalmon/internal/core/match"
	"github.com/intervalmon/intervalmon/internal/core/showtime"
)

type emission struct {
	level   logrus.Level
	message string
	fields  logrus.Fields
}

type recordingSink struct {
	mu        sync.Mutex
	emissions []emission
}

func (s *recordingSink) Emit(level logrus.Level, message, description string, fields logrus.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emissions = append(s.emissions, emission{level: level, message: message, fields: fields})
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emissions)
}

func (s *recordingSink) countLevel(level logrus.Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.emissions {
		if e.level == level {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	mu    sync.Mutex
	list  []holidays.Holiday
	err   error
	calls int
}

func (p *fakeProvider) Holidays(_ context.Context, _ time.Time) ([]holidays.Holiday, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.list, p.err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func messageRules() *match.RuleSet {
	rules := match.NewRuleSet()
	rules.Add(match.Rule(1, "", "heartbeat"))
	return rules
}

// newTestEngine builds an engine pinned to a fixed clock with an always-on
// window, so every tick lands inside the monitoring interval.
func newTestEngine(t *testing.T, cfg Config, start time.Time, provider HolidayProvider) (*Engine, *recordingSink, *recordingSink, *testClock) {
	t.Helper()

	if cfg.Rules == nil {
		cfg.Rules = messageRules()
	}
	if cfg.Schedule.StartTime == "" {
		cfg.Schedule = showtime.Config{
			StartTime:   "0:00:00",
			EndTime:     "0:00:00",
			StartFormat: "15:04:05",
			EndFormat:   "15:04:05",
			Location:    time.UTC,
		}
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	alerts := &recordingSink{}
	diags := &recordingSink{}

	e, err := New(cfg, logger, alerts, diags, provider, nil)
	require.NoError(t, err)

	clock := &testClock{now: start}
	e.clock = clock.Now
	e.sched = showtime.New(cfg.Schedule, start, logger)

	return e, alerts, diags, clock
}

func counters(e *Engine) Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

func state(e *Engine) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func TestNewRequiresRules(t *testing.T) {
	_, err := New(Config{}, logrus.New(), nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestTimeoutAlert(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, alerts, _, _ := newTestEngine(t, Config{Timeout: 2 * time.Second}, t0, nil)

	e.OnTick(t0)
	assert.Equal(t, StateArmed, state(e))
	assert.Equal(t, 0, alerts.count())

	e.OnTick(t0.Add(1 * time.Second))
	assert.Equal(t, 0, alerts.count(), "timeout has not elapsed yet")

	e.OnTick(t0.Add(3 * time.Second))
	assert.Equal(t, 1, alerts.count())
	assert.Equal(t, StateAlerted, state(e))
	assert.NotNil(t, e.Snapshot().LastAlert)
	assert.NotEmpty(t, e.Snapshot().LastAlert.ID)
}

func TestSuppressionSpacesAlerts(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, alerts, _, _ := newTestEngine(t, Config{
		Timeout:     2 * time.Second,
		Suppression: 60 * time.Second,
	}, t0, nil)

	e.OnTick(t0)
	e.OnTick(t0.Add(3 * time.Second))
	require.Equal(t, 1, alerts.count())

	// Still inside the suppression interval
	e.OnTick(t0.Add(30 * time.Second))
	assert.Equal(t, 1, alerts.count())

	// Past the suppression interval the alert repeats
	e.OnTick(t0.Add(64 * time.Second))
	assert.Equal(t, 2, alerts.count())
}

func TestMatchPreventsAlert(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, alerts, _, clock := newTestEngine(t, Config{Timeout: 2 * time.Second}, t0, nil)

	e.OnTick(t0)
	clock.Set(t0.Add(1 * time.Second))
	e.OnEvent("heartbeat received", nil)

	c := counters(e)
	assert.Equal(t, 1, c.Matched)
	assert.Equal(t, t0.Add(1*time.Second), c.LastCheck)

	// Without repeat timeout, a single match satisfies the whole window
	e.OnTick(t0.Add(10 * time.Second))
	assert.Equal(t, 0, alerts.count())

	// Further matches are ignored
	clock.Set(t0.Add(11 * time.Second))
	e.OnEvent("heartbeat received", nil)
	assert.Equal(t, 1, counters(e).Matched)
}

func TestNonMatchingEventIgnored(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, alerts, _, _ := newTestEngine(t, Config{Timeout: 2 * time.Second}, t0, nil)

	e.OnTick(t0)
	e.OnEvent("unrelated log line", nil)
	assert.Equal(t, 0, counters(e).Matched)

	e.OnTick(t0.Add(3 * time.Second))
	assert.Equal(t, 1, alerts.count())
}

func TestRepeatTimeout(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, alerts, _, clock := newTestEngine(t, Config{
		Timeout:       2 * time.Second,
		RepeatTimeout: true,
	}, t0, nil)

	e.OnTick(t0)
	clock.Set(t0.Add(1 * time.Second))
	e.OnEvent("heartbeat received", nil)
	require.Equal(t, 1, counters(e).Matched)

	e.OnTick(t0.Add(2 * time.Second))
	assert.Equal(t, 0, alerts.count())

	// No further matches arrive, so the timeout fires again
	e.OnTick(t0.Add(4 * time.Second))
	assert.Equal(t, 1, alerts.count())
	assert.Equal(t, StateAlerted, state(e))

	// A fresh match clears the alarm on the next tick
	clock.Set(t0.Add(5 * time.Second))
	e.OnEvent("heartbeat received", nil)
	e.OnTick(t0.Add(6 * time.Second))
	assert.Equal(t, 1, alerts.count())
	assert.Equal(t, StateArmed, state(e))
}

func TestCannotMatchDiagnosticOnce(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)

	rules := match.NewRuleSet()
	rules.Add(match.Rule(1, "", ""))
	rules.Add(match.Rule(2, "Host", "web01"))

	e, _, diags, _ := newTestEngine(t, Config{Timeout: 60 * time.Second, Rules: rules}, t0, nil)

	e.OnTick(t0)
	e.OnEvent("anything", match.NewPayload())
	e.OnEvent("anything", match.NewPayload())

	assert.Equal(t, 1, diags.countLevel(logrus.WarnLevel),
		"missing property diagnostic fires once per window")
	assert.True(t, counters(e).CannotMatchAlerted)

	// An event carrying the property still matches
	payload := match.NewPayload()
	payload.Set("Host", "WEB01.example.com")
	e.OnEvent("anything", payload)
	assert.Equal(t, 1, counters(e).Matched)
}

func TestEventsIgnoredOutsideWindow(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	cfg := Config{
		Timeout: 2 * time.Second,
		Schedule: showtime.Config{
			StartTime:   "9:00:00",
			EndTime:     "10:00:00",
			StartFormat: "15:04:05",
			EndFormat:   "15:04:05",
			Location:    time.UTC,
		},
	}
	e, alerts, _, _ := newTestEngine(t, cfg, t0, nil)

	e.OnTick(t0)
	assert.Equal(t, StateIdle, state(e))

	e.OnEvent("heartbeat received", nil)
	assert.Equal(t, 0, counters(e).Matched)
	assert.Equal(t, 0, alerts.count())
}

func TestWindowCloseResetsState(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 9, 0, 0, 0, time.UTC)
	cfg := Config{
		Timeout: 2 * time.Second,
		Schedule: showtime.Config{
			StartTime:   "9:00:00",
			EndTime:     "10:00:00",
			StartFormat: "15:04:05",
			EndFormat:   "15:04:05",
			Location:    time.UTC,
		},
	}
	e, alerts, _, clock := newTestEngine(t, cfg, t0.Add(-time.Hour), nil)

	e.OnTick(t0)
	require.Equal(t, StateArmed, state(e))

	clock.Set(t0.Add(1 * time.Second))
	e.OnEvent("heartbeat received", nil)
	require.Equal(t, 1, counters(e).Matched)

	// Past the end the state machine disarms and counters clear
	after := t0.Add(61 * time.Minute)
	e.OnTick(after)
	assert.Equal(t, StateIdle, state(e))
	assert.Equal(t, 0, counters(e).Matched)
	assert.Equal(t, 0, alerts.count())

	// The boundaries rolled over to the next day
	w := e.CurrentWindow()
	assert.Equal(t, time.Date(2023, time.June, 16, 9, 0, 0, 0, time.UTC), w.Start)
}

func TestExcludedDaySkipsMonitoring(t *testing.T) {
	// June 15th 2023 is a Thursday
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	cfg := Config{
		Timeout: 2 * time.Second,
		Schedule: showtime.Config{
			StartTime:   "0:00:00",
			EndTime:     "0:00:00",
			StartFormat: "15:04:05",
			EndFormat:   "15:04:05",
			DaysOfWeek:  "Monday",
			Location:    time.UTC,
		},
	}
	e, alerts, _, _ := newTestEngine(t, cfg, t0, nil)

	e.OnTick(t0)
	e.OnTick(t0.Add(5 * time.Second))
	assert.Equal(t, StateIdle, state(e))
	assert.Equal(t, 0, alerts.count())
	assert.True(t, counters(e).SkippedShowtime)
}

func TestHolidayFetchDefersArming(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	provider := &fakeProvider{err: fmt.Errorf("service unavailable")}

	e, _, _, clock := newTestEngine(t, Config{
		Timeout: 2 * time.Second,
		Holidays: HolidayConfig{
			Enabled:    true,
			Country:    "AU",
			RetryCount: 2,
		},
	}, t0, provider)

	e.OnTick(t0)
	require.Eventually(t, func() bool {
		c := counters(e)
		return !c.IsUpdating && c.ErrorCount == 1
	}, time.Second, time.Millisecond)

	// A failed fetch keeps the window idle and waits out the backoff
	e.OnTick(t0.Add(1 * time.Second))
	assert.Equal(t, StateIdle, state(e))
	assert.Equal(t, 1, provider.callCount())

	// Past the backoff the fetch is retried
	clock.Set(t0.Add(11 * time.Second))
	e.OnTick(t0.Add(11 * time.Second))
	require.Eventually(t, func() bool {
		c := counters(e)
		return !c.IsUpdating && c.ErrorCount == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, provider.callCount())

	// The exhausted budget degrades to an empty holiday set and arms
	clock.Set(t0.Add(22 * time.Second))
	e.OnTick(t0.Add(22 * time.Second))
	c := counters(e)
	assert.False(t, c.HolidayError)
	assert.Equal(t, 0, c.ErrorCount)
	assert.Equal(t, 2, provider.callCount(), "no further fetches after the budget is spent")

	e.OnTick(t0.Add(23 * time.Second))
	assert.Equal(t, StateArmed, state(e))
}

func TestHolidayFetchSuccess(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	holiday, err := holidays.New("National Day", "", "AU", "", "AU", "Australia",
		"National holiday", "6/16/2023", time.UTC)
	require.NoError(t, err)
	provider := &fakeProvider{list: []holidays.Holiday{holiday}}

	e, _, _, _ := newTestEngine(t, Config{
		Timeout: 2 * time.Second,
		Holidays: HolidayConfig{
			Enabled:    true,
			Country:    "AU",
			RetryCount: 2,
		},
	}, t0, provider)

	e.OnTick(t0)
	require.Eventually(t, func() bool {
		return e.Snapshot().Holidays == 1 && !counters(e).IsUpdating
	}, time.Second, time.Millisecond)

	e.OnTick(t0.Add(1 * time.Second))
	assert.Equal(t, StateArmed, state(e))
	assert.Equal(t, 1, provider.callCount(), "one fetch per local calendar day")
}

func TestHolidayFilteringApplied(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	national, err := holidays.New("National Day", "", "AU", "", "AU", "Australia",
		"National holiday", "6/16/2023", time.UTC)
	require.NoError(t, err)
	local, err := holidays.New("Show Day", "", "AU", "", "AU",
		"Australia - Queensland", "Local holiday", "6/16/2023", time.UTC)
	require.NoError(t, err)
	provider := &fakeProvider{list: []holidays.Holiday{national, local}}

	e, _, _, _ := newTestEngine(t, Config{
		Timeout: 2 * time.Second,
		Holidays: HolidayConfig{
			Enabled:    true,
			Country:    "AU",
			TypeMatch:  []string{"National"},
			RetryCount: 2,
		},
	}, t0, provider)

	e.OnTick(t0)
	require.Eventually(t, func() bool {
		return !counters(e).IsUpdating && e.Snapshot().Holidays == 1
	}, time.Second, time.Millisecond)
}

func TestInvalidCountryDisablesHolidays(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	provider := &fakeProvider{}

	e, _, _, _ := newTestEngine(t, Config{
		Timeout: 2 * time.Second,
		Holidays: HolidayConfig{
			Enabled: true,
			Country: "Notaland",
		},
	}, t0, provider)

	e.OnTick(t0)
	e.OnTick(t0.Add(1 * time.Second))
	assert.Equal(t, 0, provider.callCount())
	assert.Equal(t, StateArmed, state(e))
}

func TestIncludeAppPrefix(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, alerts, _, _ := newTestEngine(t, Config{
		AppName:      "Payments Monitor",
		Timeout:      2 * time.Second,
		AlertMessage: "An event timeout has occurred!",
		AlertLevel:   logrus.ErrorLevel,
		IncludeApp:   true,
	}, t0, nil)

	e.OnTick(t0)
	e.OnTick(t0.Add(3 * time.Second))

	require.Equal(t, 1, alerts.count())
	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	assert.Equal(t, "[Payments Monitor] - An event timeout has occurred!", alerts.emissions[0].message)
	assert.Equal(t, logrus.ErrorLevel, alerts.emissions[0].level)
}

func TestStartStop(t *testing.T) {
	t0 := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)
	e, _, _, _ := newTestEngine(t, Config{Timeout: 2 * time.Second}, t0, nil)

	require.NoError(t, e.Start())
	assert.Error(t, e.Start(), "double start is rejected")
	require.NoError(t, e.Stop())
	assert.Error(t, e.Stop(), "double stop is rejected")
}
