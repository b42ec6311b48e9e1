package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// SecondsPerWeek is the number of one-second slots in a weekly series.
const SecondsPerWeek = 7 * 24 * 60 * 60

var weekKeyRe = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// WeekKey identifies an ISO-8601 week. Year is the ISO year, which can differ
// from the calendar year in the first and last days of January/December.
type WeekKey struct {
	Year int
	Week int
}

// WeekOf returns the ISO week containing t in t's location.
func WeekOf(t time.Time) WeekKey {
	y, w := t.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// ParseWeekKey parses "YYYY-Wnn". Week 53 is accepted only for ISO years that
// have one.
func ParseWeekKey(s string) (WeekKey, error) {
	m := weekKeyRe.FindStringSubmatch(s)
	if m == nil {
		return WeekKey{}, fmt.Errorf("invalid week key %q", s)
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	k := WeekKey{Year: year, Week: week}
	if week < 1 || week > 53 || WeekOf(k.civilMonday()) != k {
		return WeekKey{}, fmt.Errorf("invalid week key %q: no such ISO week", s)
	}
	return k, nil
}

func (k WeekKey) String() string {
	return fmt.Sprintf("%04d-W%02d", k.Year, k.Week)
}

// FileName is the name of the weekly output file for k.
func (k WeekKey) FileName() string {
	return k.String() + ".csv"
}

// Less orders keys chronologically.
func (k WeekKey) Less(o WeekKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Week < o.Week
}

// Monday returns Monday 00:00:00 of the week in loc.
func (k WeekKey) Monday(loc *time.Location) time.Time {
	m := k.civilMonday()
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, loc)
}

// civilMonday is Monday of the week as a civil date, carried in UTC so that
// arithmetic on it is free of DST.
func (k WeekKey) civilMonday() time.Time {
	jan4 := time.Date(k.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return time.Date(k.Year, time.January, 4-offset+(k.Week-1)*7, 0, 0, 0, 0, time.UTC)
}

// Slot returns the wall-clock second of local within the week, in
// [0, SecondsPerWeek), or -1 when local falls in another week. Only the wall
// clock fields of local are used.
func (k WeekKey) Slot(local time.Time) int {
	y, mo, d := local.Date()
	h, mi, s := local.Clock()
	civil := time.Date(y, mo, d, h, mi, s, 0, time.UTC)
	i := int(civil.Sub(k.civilMonday()) / time.Second)
	if i < 0 || i >= SecondsPerWeek {
		return -1
	}
	return i
}

// SlotLabel renders slot i as a wall-clock timestamp.
func (k WeekKey) SlotLabel(i int) string {
	return k.civilMonday().Add(time.Duration(i) * time.Second).Format(WallClockLayout)
}

// WeekOfDate returns the ISO week of a calendar date named "YYYY-MM-DD".
func WeekOfDate(date string) (WeekKey, error) {
	d, err := time.Parse(DailyLayout, date)
	if err != nil {
		return WeekKey{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return WeekOf(d), nil
}
