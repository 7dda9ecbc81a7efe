// Package availability models a gamer's weekly availability and answers
// overlap queries against it.
package availability

import "time"

// AllDayThreshold is the duration at which an interval is treated as covering
// its whole calendar day. It is just under 24h so that rounding in stored
// occurrences does not demote an all-day block.
const AllDayThreshold = 86000 * time.Second

// Interval is a half-open time range [Start, End) compared by instant.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// IsAllDay reports whether the interval meets the all-day threshold.
func (i Interval) IsAllDay() bool {
	return i.Duration() >= AllDayThreshold
}

// Normalize expands an all-day interval to midnight..23:59:59 of the day that
// contains Start in loc. Other intervals are returned unchanged.
func (i Interval) Normalize(loc *time.Location) Interval {
	if !i.IsAllDay() {
		return i
	}
	if loc == nil {
		loc = i.Start.Location()
	}
	y, m, d := i.Start.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)
	return Interval{Start: start, End: end}
}

// Intersection returns the length of the shared part of both intervals. The
// result is zero or negative when they do not share any instant.
func (i Interval) Intersection(other Interval) time.Duration {
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	return end.Sub(start)
}

// Overlaps reports whether the intervals share at least minOverlap of time.
// Touching intervals never overlap, even when minOverlap is zero.
func (i Interval) Overlaps(other Interval, minOverlap time.Duration) bool {
	shared := i.Intersection(other)
	return shared > 0 && shared >= minOverlap
}

// alignTo moves the interval onto the local date of day, keeping its local
// start clock time and its duration.
func (i Interval) alignTo(day time.Time, loc *time.Location) Interval {
	clock := i.Start.In(loc)
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), loc)
	return Interval{Start: start, End: start.Add(i.Duration())}
}
