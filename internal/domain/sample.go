package domain

import (
	"time"
)

// Column names shared by daily and weekly files.
const (
	TimeColumn  = "Time"
	ValueColumn = "Value"
)

// WallClockLayout is the timestamp format of weekly files: local wall clock
// in the target timezone, without an offset.
const WallClockLayout = "2006-01-02 15:04:05"

// DailyLayout is the date format used to name extracted daily files.
const DailyLayout = "2006-01-02"

// Sample is one reading. Values holds one entry per value column in file
// order, with Value first; missing values are NaN.
type Sample struct {
	Time   time.Time
	Values []float64
}

// Nominal band of the Nordic grid, in Hz.
const (
	NominalLower = 49.9
	NominalUpper = 50.1
)

// Band is an inclusive frequency range.
type Band struct {
	Lower float64
	Upper float64
}

// NominalBand returns the 49.9–50.1 Hz band.
func NominalBand() Band {
	return Band{Lower: NominalLower, Upper: NominalUpper}
}

// Outside reports whether v is strictly below Lower or strictly above Upper.
// NaN is never outside.
func (b Band) Outside(v float64) bool {
	return v < b.Lower || v > b.Upper
}

// WeeklySummary is one row of the minutes-outside-nominal summary.
type WeeklySummary struct {
	Year                  int     `json:"year"`
	Week                  int     `json:"week"`
	MinutesOutsideNominal float64 `json:"minutes_outside_nominal"`
}

// Key returns the ISO week the row describes.
func (s WeeklySummary) Key() WeekKey {
	return WeekKey{Year: s.Year, Week: s.Week}
}
