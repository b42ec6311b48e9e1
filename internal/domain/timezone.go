package domain

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without one
)

// AmbiguousPolicy decides which instant an ambiguous local time (repeated
// during a fall-back transition) maps to.
type AmbiguousPolicy int

const (
	// AmbiguousStandard treats ambiguous local times as not-DST: the later instant.
	AmbiguousStandard AmbiguousPolicy = iota
	// AmbiguousDST treats ambiguous local times as DST: the earlier instant.
	AmbiguousDST
)

// NonexistentPolicy decides what happens to a local time skipped by a
// spring-forward transition.
type NonexistentPolicy int

const (
	// NonexistentShiftForward moves the time forward by the length of the gap.
	NonexistentShiftForward NonexistentPolicy = iota
	// NonexistentDrop discards the sample.
	NonexistentDrop
)

// ParseAmbiguousPolicy parses "standard" or "dst".
func ParseAmbiguousPolicy(s string) (AmbiguousPolicy, error) {
	switch s {
	case "standard":
		return AmbiguousStandard, nil
	case "dst":
		return AmbiguousDST, nil
	}
	return 0, fmt.Errorf("unknown ambiguous time policy %q", s)
}

// ParseNonexistentPolicy parses "shift_forward" or "drop".
func ParseNonexistentPolicy(s string) (NonexistentPolicy, error) {
	switch s {
	case "shift_forward":
		return NonexistentShiftForward, nil
	case "drop":
		return NonexistentDrop, nil
	}
	return 0, fmt.Errorf("unknown nonexistent time policy %q", s)
}

// Localizer interprets naive wall-clock timestamps in Source and converts them
// to Target. time.Date leaves the resolution of ambiguous and nonexistent
// local times unspecified, so Localizer resolves them itself.
type Localizer struct {
	Source      *time.Location
	Target      *time.Location
	Ambiguous   AmbiguousPolicy
	Nonexistent NonexistentPolicy
}

// Localize reads the wall-clock fields of wall as a local time in Source and
// returns the instant in Target. The location of wall is ignored. ok is false
// when the time does not exist in Source and the policy drops it.
func (l Localizer) Localize(wall time.Time) (t time.Time, ok bool) {
	naive := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)

	var candidates []time.Time
	for _, off := range l.offsetsAround(naive) {
		u := naive.Add(-time.Duration(off) * time.Second)
		if !sameWallClock(u.In(l.Source), naive) {
			continue
		}
		if len(candidates) == 1 && candidates[0].Equal(u) {
			continue
		}
		candidates = append(candidates, u)
	}

	switch len(candidates) {
	case 0:
		if l.Nonexistent == NonexistentDrop {
			return time.Time{}, false
		}
		// The offset in force before the gap puts the instant past the gap
		// by exactly the distance wall was into it.
		_, before := naive.Add(-24 * time.Hour).In(l.Source).Zone()
		return naive.Add(-time.Duration(before) * time.Second).In(l.Target), true
	case 1:
		return candidates[0].In(l.Target), true
	}

	early, late := candidates[0], candidates[1]
	if late.Before(early) {
		early, late = late, early
	}
	if l.Ambiguous == AmbiguousDST {
		if late.In(l.Source).IsDST() && !early.In(l.Source).IsDST() {
			return late.In(l.Target), true
		}
		return early.In(l.Target), true
	}
	if early.In(l.Source).IsDST() || !late.In(l.Source).IsDST() {
		return late.In(l.Target), true
	}
	return early.In(l.Target), true
}

// offsetsAround returns the distinct UTC offsets of Source within a day of
// naive. Transitions are further apart than that in every real zone.
func (l Localizer) offsetsAround(naive time.Time) []int {
	var offsets []int
	for _, d := range []time.Duration{-24 * time.Hour, 0, 24 * time.Hour} {
		_, off := naive.Add(d).In(l.Source).Zone()
		seen := false
		for _, o := range offsets {
			if o == off {
				seen = true
				break
			}
		}
		if !seen {
			offsets = append(offsets, off)
		}
	}
	return offsets
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ah, ami, as := a.Clock()
	bh, bmi, bs := b.Clock()
	return ay == by && am == bm && ad == bd &&
		ah == bh && ami == bmi && as == bs &&
		a.Nanosecond() == b.Nanosecond()
}
