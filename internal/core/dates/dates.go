// Package dates resolves human day expressions ("first weekday", "second
// Tuesday", plain integers) and local weekday lists into the concrete UTC
// calendar days a monitoring window applies to.
package dates

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Time-of-day layouts accepted for window boundaries.
const (
	FormatSeconds = "15:04:05"
	FormatMinutes = "15:04"
)

// normalizeClock pads a single-digit hour so "9:00:00" parses against the
// two-digit layouts.
func normalizeClock(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.Index(value, ":"); idx == 1 {
		return "0" + value
	}
	return value
}

// DetectFormat returns the layout a time-of-day string parses with,
// preferring seconds precision and falling back to minutes.
func DetectFormat(value string) (string, error) {
	if _, err := time.Parse(FormatSeconds, normalizeClock(value)); err == nil {
		return FormatSeconds, nil
	}
	if _, err := time.Parse(FormatMinutes, normalizeClock(value)); err == nil {
		return FormatMinutes, nil
	}
	return "", fmt.Errorf("time %q does not parse as %s or %s", value, FormatSeconds, FormatMinutes)
}

// AtTime combines ref's calendar date with the given time of day, in ref's
// location.
func AtTime(value, format string, ref time.Time) (time.Time, error) {
	clock, err := time.Parse(format, normalizeClock(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %v", value, err)
	}

	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, ref.Location()), nil
}

// splitList splits a comma-delimited string, trimming entries and dropping
// empties.
func splitList(value string) []string {
	var result []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			result = append(result, entry)
		}
	}
	return result
}

// resolveDay resolves an order/type/weekday triple against the month
// containing nextStart.
func resolveDay(order DayOrder, dayType DayType, matchDay time.Weekday, nextStart time.Time) Expression {
	firstDay := time.Date(nextStart.Year(), nextStart.Month(), 1, 0, 0, 0, 0, nextStart.Location())
	lastDay := firstDay.AddDate(0, 1, -1)

	switch dayType {
	case TypeDayOfMonth:
		// Only first or last days of month are handled
		switch order {
		case OrderFirst:
			return Expression{Order: order, Type: dayType, Weekday: firstDay.Weekday(), Day: firstDay.Day()}
		case OrderLast:
			return Expression{Order: order, Type: dayType, Weekday: lastDay.Weekday(), Day: lastDay.Day()}
		default:
			return noMatch()
		}
	case TypeWeekday:
		// Only first or last weekday expressions are handled
		switch order {
		case OrderFirst:
			switch firstDay.Weekday() {
			case time.Sunday:
				firstDay = firstDay.AddDate(0, 0, 1)
			case time.Saturday:
				firstDay = firstDay.AddDate(0, 0, 2)
			}
			return Expression{Order: order, Type: dayType, Weekday: firstDay.Weekday(), Day: firstDay.Day()}
		case OrderLast:
			switch lastDay.Weekday() {
			case time.Sunday:
				lastDay = lastDay.AddDate(0, 0, -2)
			case time.Saturday:
				lastDay = lastDay.AddDate(0, 0, -1)
			}
			return Expression{Order: order, Type: dayType, Weekday: lastDay.Weekday(), Day: lastDay.Day()}
		default:
			return noMatch()
		}
	case TypeDayOfWeek:
		// Nth occurrence of a weekday in the month; "last" counts backward
		// from month end
		if order == OrderLast {
			for lastDay.Weekday() != matchDay {
				lastDay = lastDay.AddDate(0, 0, -1)
			}
			return Expression{Order: order, Type: dayType, Weekday: lastDay.Weekday(), Day: lastDay.Day()}
		}
		if order != OrderNone {
			for firstDay.Weekday() != matchDay {
				firstDay = firstDay.AddDate(0, 0, 1)
			}
			firstDay = firstDay.AddDate(0, 0, int(order)*7)

			// The nth occurrence must still fall inside the same month
			if nextStart.Month() == firstDay.Month() {
				return Expression{Order: order, Type: dayType, Weekday: firstDay.Weekday(), Day: firstDay.Day()}
			}
			return noMatch()
		}
		return noMatch()
	case TypeDay:
		return Expression{Order: order, Type: dayType, Weekday: nextStart.Weekday(), Day: nextStart.Day()}
	}

	return noMatch()
}

// resolveExpression parses one day expression against the month of the next
// local occurrence. Unparseable expressions resolve to the no-match sentinel.
func resolveExpression(day string, now time.Time) Expression {
	if day == "" {
		return noMatch()
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	firstDay := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, now.Location())
	lastDay := firstDay.AddDate(0, 1, -1)

	// A plain integer is just that day of the month
	if dayResult, err := strconv.Atoi(day); err == nil {
		if dayResult <= 0 || dayResult > lastDay.Day() {
			return noMatch()
		}
		return resolveDay(OrderNone, TypeDay, NoDayMatch,
			time.Date(firstDay.Year(), firstDay.Month(), dayResult, 0, 0, 0, 0, now.Location()))
	}

	// Month rollover - if today is the last day of the month, "first"
	// expressions must resolve against next month
	atMonthEnd := today.Day() == lastDay.Day() && today.Month() == lastDay.Month()

	switch strings.ToLower(day) {
	case "first":
		if atMonthEnd {
			return resolveDay(OrderFirst, TypeDayOfMonth, NoDayMatch, firstDay.AddDate(0, 1, 0))
		}
		return resolveDay(OrderFirst, TypeDayOfMonth, NoDayMatch, firstDay)
	case "last":
		return resolveDay(OrderLast, TypeDayOfMonth, NoDayMatch, lastDay)
	case "first weekday":
		if atMonthEnd {
			return resolveDay(OrderFirst, TypeWeekday, NoDayMatch, firstDay.AddDate(0, 1, 0))
		}
		return resolveDay(OrderFirst, TypeWeekday, NoDayMatch, firstDay)
	case "last weekday":
		return resolveDay(OrderLast, TypeWeekday, NoDayMatch, lastDay)
	default:
		parts := strings.Fields(day)
		if len(parts) != 2 {
			return noMatch()
		}
		order, ok := ParseDayOrder(parts[0])
		if !ok || order == OrderNone {
			return noMatch()
		}
		matchDay, ok := ParseWeekday(parts[1])
		if !ok {
			return noMatch()
		}
		if order == OrderFirst && atMonthEnd {
			return resolveDay(order, TypeDayOfWeek, matchDay, firstDay.AddDate(0, 1, 0))
		}
		return resolveDay(order, TypeDayOfWeek, matchDay, firstDay)
	}
}

// DaysOfMonth resolves a comma-delimited list of day expressions into the
// sorted, de-duplicated UTC days of month they denote for the next local
// occurrence of the start time.
func DaysOfMonth(expression, startTime, startFormat string, now time.Time) []int {
	result := make([]int, 0)
	if expression == "" {
		return result
	}

	localStart, err := AtTime(startTime, startFormat, now)
	if err != nil {
		return result
	}
	// Always calculate based on the next start
	if localStart.Before(now) {
		localStart = localStart.AddDate(0, 0, 1)
	}

	for _, day := range splitList(expression) {
		expr := resolveExpression(day, now)
		if expr.Type == TypeNoMatch {
			continue
		}

		resolved := time.Date(localStart.Year(), localStart.Month(), expr.Day,
			localStart.Hour(), localStart.Minute(), localStart.Second(), 0, now.Location()).UTC()
		seen := false
		for _, existing := range result {
			if existing == resolved.Day() {
				seen = true
				break
			}
		}
		if !seen {
			result = append(result, resolved.Day())
		}
	}

	sort.Ints(result)
	return result
}

// AllWeekdays returns every day of the week, the default when no weekday
// list is configured.
func AllWeekdays() []time.Weekday {
	return []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
}

// DaysOfWeek converts a comma-delimited local weekday list into the weekdays
// of the UTC-equivalent start instants. When the UTC conversion of the local
// start crosses backward over local midnight, each configured weekday shifts
// back by one, wrapping Sunday to Saturday.
func DaysOfWeek(daysOfWeek, startTime, startFormat string, now time.Time) []time.Weekday {
	result := make([]time.Weekday, 0)

	localStart, err := AtTime(startTime, startFormat, now)
	if err != nil {
		return AllWeekdays()
	}
	utcStart := localStart.UTC()

	// Always calculate based on the next start
	if localStart.Before(now) {
		localStart = localStart.AddDate(0, 0, 1)
	}

	shifted := localStart.UTC().Weekday() < localStart.Weekday() ||
		(localStart.Weekday() == time.Sunday && utcStart.Weekday() == time.Saturday)

	for _, day := range splitList(daysOfWeek) {
		weekday, ok := ParseWeekday(day)
		if !ok {
			continue
		}

		if shifted {
			if weekday-1 >= 0 {
				weekday--
			} else {
				weekday = time.Saturday
			}
		}

		seen := false
		for _, existing := range result {
			if existing == weekday {
				seen = true
				break
			}
		}
		if !seen {
			result = append(result, weekday)
		}
	}

	if len(result) == 0 {
		return AllWeekdays()
	}
	return result
}
