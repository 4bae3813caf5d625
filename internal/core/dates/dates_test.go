package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
		wantErr  bool
	}{
		{name: "seconds precision", value: "9:00:00", expected: FormatSeconds},
		{name: "minutes precision", value: "14:30", expected: FormatMinutes},
		{name: "two digit hour", value: "09:00:00", expected: FormatSeconds},
		{name: "garbage", value: "not a time", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := DetectFormat(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}
}

func TestAtTime(t *testing.T) {
	ref := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)

	result, err := AtTime("9:30:15", FormatSeconds, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.June, 15, 9, 30, 15, 0, time.UTC), result)

	result, err = AtTime("23:45", FormatMinutes, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.June, 15, 23, 45, 0, 0, time.UTC), result)

	_, err = AtTime("25:00:00", FormatSeconds, ref)
	assert.Error(t, err)
}

func TestDaysOfMonth(t *testing.T) {
	// June 2023: 30 days, the 1st is a Thursday, the 30th a Friday
	now := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expression string
		expected   []int
	}{
		{name: "first", expression: "first", expected: []int{1}},
		{name: "last", expression: "last", expected: []int{30}},
		{name: "first weekday", expression: "first weekday", expected: []int{1}},
		{name: "last weekday", expression: "last weekday", expected: []int{30}},
		{name: "plain integer", expression: "15", expected: []int{15}},
		{name: "second tuesday", expression: "second Tuesday", expected: []int{13}},
		{name: "last friday", expression: "last Friday", expected: []int{30}},
		{name: "fifth monday does not exist", expression: "fifth Monday", expected: []int{}},
		{name: "out of range integer", expression: "31", expected: []int{}},
		{name: "zero", expression: "0", expected: []int{}},
		{name: "unparseable dropped", expression: "gibberish,notaday also", expected: []int{}},
		{name: "mixed sorted deduplicated", expression: "last,first,1,second Tuesday", expected: []int{1, 13, 30}},
		{name: "empty", expression: "", expected: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DaysOfMonth(tt.expression, "12:00", FormatMinutes, now)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDaysOfMonthBounds(t *testing.T) {
	// first/last always resolve inside the month, whatever the month
	for month := time.January; month <= time.December; month++ {
		now := time.Date(2023, month, 10, 8, 0, 0, 0, time.UTC)
		daysInMonth := time.Date(2023, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()

		result := DaysOfMonth("first,last", "12:00", FormatMinutes, now)
		require.Len(t, result, 2)
		assert.Equal(t, 1, result[0])
		assert.Equal(t, daysInMonth, result[1])
	}
}

func TestDaysOfMonthRollover(t *testing.T) {
	// On the last day of the month, "first" resolves against next month
	now := time.Date(2023, time.June, 30, 8, 0, 0, 0, time.UTC)
	result := DaysOfMonth("first", "12:00", FormatMinutes, now)
	assert.Equal(t, []int{1}, result)

	// July 2023 starts on a Saturday, so its first weekday is the 3rd
	result = DaysOfMonth("first weekday", "12:00", FormatMinutes, now)
	assert.Equal(t, []int{3}, result)
}

func TestDaysOfWeek(t *testing.T) {
	now := time.Date(2023, time.June, 15, 8, 0, 0, 0, time.UTC)

	t.Run("no shift in UTC", func(t *testing.T) {
		result := DaysOfWeek("Monday,Friday", "12:00", FormatMinutes, now)
		assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, result)
	})

	t.Run("empty defaults to all days", func(t *testing.T) {
		result := DaysOfWeek("", "12:00", FormatMinutes, now)
		assert.Len(t, result, 7)
	})

	t.Run("unparseable entries dropped to default", func(t *testing.T) {
		result := DaysOfWeek("Funday", "12:00", FormatMinutes, now)
		assert.Len(t, result, 7)
	})

	t.Run("duplicates removed", func(t *testing.T) {
		result := DaysOfWeek("Monday,monday,MONDAY", "12:00", FormatMinutes, now)
		assert.Equal(t, []time.Weekday{time.Monday}, result)
	})

	t.Run("shift back when UTC crosses local midnight", func(t *testing.T) {
		// UTC+10: a 09:00 local start is 23:00 UTC the previous day
		loc := time.FixedZone("UTC+10", 10*3600)
		local := time.Date(2023, time.June, 15, 8, 0, 0, 0, loc)

		result := DaysOfWeek("Monday,Sunday", "9:00:00", FormatSeconds, local)
		assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, result)
	})
}
