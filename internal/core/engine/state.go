package engine

import "time"

// State is the controller's alert state machine.
type State int

const (
	// StateIdle means the monitoring window is closed or suppressed.
	StateIdle State = iota
	// StateArmed means the window is open and a match is awaited.
	StateArmed
	// StateAlerted means a timeout alert has fired and further alerts are
	// spaced by the suppression interval.
	StateAlerted
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateAlerted:
		return "alerted"
	default:
		return "idle"
	}
}

// Counters is the mutable per-window bookkeeping. It is owned by the engine
// and only ever touched under the engine mutex; the window-close transition
// is the single reset point.
type Counters struct {
	Matched            int
	LastMatched        int
	LastCheck          time.Time
	LastLog            time.Time
	LastMatchLog       time.Time
	LastDay            time.Time
	LastError          time.Time
	ErrorCount         int
	IsUpdating         bool
	HolidayError       bool
	CannotMatchAlerted bool
	SkippedShowtime    bool
}

// reset clears the per-window state when the window closes. Holiday fetch
// bookkeeping (LastDay, ErrorCount, retry timestamps) survives the reset.
func (c *Counters) reset(now time.Time) {
	c.Matched = 0
	c.LastMatched = 0
	c.LastCheck = now
	c.LastLog = now
	c.CannotMatchAlerted = false
	c.SkippedShowtime = false
}
