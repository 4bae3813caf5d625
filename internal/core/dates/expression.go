package dates

import (
	"strings"
	"time"
)

// DayOrder represents the ordinal position of a day within a month
type DayOrder int

const (
	OrderFirst  DayOrder = 0
	OrderSecond DayOrder = 1
	OrderThird  DayOrder = 2
	OrderFourth DayOrder = 3
	OrderFifth  DayOrder = 4
	OrderLast   DayOrder = 5
	OrderNone   DayOrder = -1
)

// DayType represents the kind of day an expression resolves to
type DayType int

const (
	TypeDay        DayType = 0
	TypeDayOfWeek  DayType = 1
	TypeDayOfMonth DayType = 2
	TypeWeekday    DayType = 3
	TypeNoMatch    DayType = -1
)

// NoDayMatch is the sentinel for expressions that do not name a weekday.
const NoDayMatch = time.Weekday(-1)

// Expression is a resolved day expression: the order, type, weekday and
// day-of-month it denotes for a given reference month.
type Expression struct {
	Order   DayOrder
	Type    DayType
	Weekday time.Weekday
	Day     int
}

// noMatch is returned for any expression that cannot be resolved. Callers
// drop these from result sets rather than treating them as errors.
func noMatch() Expression {
	return Expression{Order: OrderNone, Type: TypeNoMatch, Weekday: time.Sunday, Day: -1}
}

var dayOrders = map[string]DayOrder{
	"first":  OrderFirst,
	"second": OrderSecond,
	"third":  OrderThird,
	"fourth": OrderFourth,
	"fifth":  OrderFifth,
	"last":   OrderLast,
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDayOrder parses an ordinal name ("first" .. "fifth", "last").
func ParseDayOrder(value string) (DayOrder, bool) {
	order, ok := dayOrders[strings.ToLower(strings.TrimSpace(value))]
	return order, ok
}

// ParseWeekday parses a weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, bool) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(value))]
	return day, ok
}
