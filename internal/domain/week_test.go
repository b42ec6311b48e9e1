package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWeekKey = "2024-W01"

func TestWeekOf(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		expected WeekKey
	}{
		{"first monday of 2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), WeekKey{2024, 1}},
		{"iso year ahead of calendar year", time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC), WeekKey{2025, 1}},
		{"iso year behind calendar year", time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), WeekKey{2020, 53}},
		{"sunday last second", time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC), WeekKey{2024, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WeekOf(tt.date))
		})
	}
}

func TestParseWeekKey(t *testing.T) {
	k, err := ParseWeekKey(testWeekKey)
	require.NoError(t, err)
	assert.Equal(t, WeekKey{Year: 2024, Week: 1}, k)
	assert.Equal(t, testWeekKey, k.String())
	assert.Equal(t, "2024-W01.csv", k.FileName())

	_, err = ParseWeekKey("2020-W53")
	require.NoError(t, err)

	for _, bad := range []string{"2024-W00", "2023-W53", "2024-1", "2024-W1", "weekly"} {
		_, err := ParseWeekKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestWeekKey_Monday(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, oslo), WeekKey{2024, 1}.Monday(oslo))
	assert.Equal(t, time.Date(2020, 12, 28, 0, 0, 0, 0, oslo), WeekKey{2020, 53}.Monday(oslo))
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, oslo), WeekKey{2025, 1}.Monday(oslo))
}

func TestWeekKey_Less(t *testing.T) {
	assert.True(t, WeekKey{2023, 52}.Less(WeekKey{2024, 1}))
	assert.True(t, WeekKey{2024, 1}.Less(WeekKey{2024, 2}))
	assert.False(t, WeekKey{2024, 2}.Less(WeekKey{2024, 2}))
}

func TestWeekKey_Slot(t *testing.T) {
	k := WeekKey{2024, 1}
	assert.Equal(t, 0, k.Slot(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, k.Slot(time.Date(2024, 1, 1, 0, 0, 0, 900_000_000, time.UTC)))
	assert.Equal(t, SecondsPerWeek-1, k.Slot(time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, -1, k.Slot(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, k.Slot(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))

	// Only wall-clock fields matter, so a DST day still maps to whole seconds of the day.
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)
	spring := WeekKey{2024, 13}
	afterGap := time.Date(2024, 3, 31, 3, 0, 0, 0, oslo)
	assert.Equal(t, 6*86400+3*3600, spring.Slot(afterGap))
}

func TestWeekKey_SlotLabel(t *testing.T) {
	k := WeekKey{2024, 1}
	assert.Equal(t, "2024-01-01 00:00:00", k.SlotLabel(0))
	assert.Equal(t, "2024-01-07 23:59:59", k.SlotLabel(SecondsPerWeek-1))
}

func TestWeekOfDate(t *testing.T) {
	k, err := WeekOfDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, WeekKey{2024, 1}, k)

	_, err = WeekOfDate("not-a-date")
	require.Error(t, err)
}

func TestBand_Outside(t *testing.T) {
	b := NominalBand()
	assert.False(t, b.Outside(50.0))
	assert.False(t, b.Outside(49.9))
	assert.False(t, b.Outside(50.1))
	assert.True(t, b.Outside(49.89))
	assert.True(t, b.Outside(50.11))
	assert.False(t, b.Outside(math.NaN()))
}

func TestMonthRange(t *testing.T) {
	from, err := ParseMonth("2024-11")
	require.NoError(t, err)
	to, err := ParseMonth("2025-02")
	require.NoError(t, err)

	months := MonthRange(from, to)
	tags := make([]string, 0, len(months))
	for _, m := range months {
		tags = append(tags, m.Tag())
	}
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01", "2025-02"}, tags)

	assert.Empty(t, MonthRange(to, from))
	assert.Len(t, MonthRange(from, from), 1)

	_, err = ParseMonth("2024-13")
	require.Error(t, err)
}
