package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockMinutes(t *testing.T) {
	m, err := ClockMinutes("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ClockMinutes("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, m)

	for _, bad := range []string{"9:30", "24:00", "12:60", "", "12-30", "12:3"} {
		_, err := ClockMinutes(bad)
		assert.Error(t, err, bad)
		assert.False(t, IsValidClock(bad), bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	assert.False(t, IsValidDate("2026-02-30"))
	assert.False(t, IsValidDate("02-03-2026"))
	assert.True(t, IsValidDate("2024-02-29"))
}

func TestAddDaysAndMonthStart(t *testing.T) {
	next, err := AddDays("2026-01-31", 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", next)

	prev, err := AddDays("2026-03-01", -1)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", prev)

	_, err = AddDays("nope", 1)
	assert.Error(t, err)

	now := time.Date(2026, 3, 17, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), MonthStart(now))
	assert.Equal(t, "2026-03-17", FormatDate(now))
	assert.Equal(t, "15:04", FormatClock(now))
}
