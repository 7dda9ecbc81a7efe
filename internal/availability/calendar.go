package availability

import (
	"iter"
	"sort"
	"sync/atomic"
	"time"

	"github.com/example/lfg-availability/internal/recurrence"
)

// Verdict explains the outcome of evaluating a proposed time against a calendar.
type Verdict int

const (
	// VerdictAvailable means the proposed time overlaps the gamer's availability enough.
	VerdictAvailable Verdict = iota
	// VerdictNoAvailability means the calendar has no active availability at all.
	VerdictNoAvailability
	// VerdictDayUnavailable means nothing is recorded for the proposed weekday.
	VerdictDayUnavailable
	// VerdictInsufficientOverlap means the weekday has availability that does
	// not overlap the proposal by the required minimum.
	VerdictInsufficientOverlap
)

// String returns a stable label for logs and metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictAvailable:
		return "available"
	case VerdictNoAvailability:
		return "no_availability"
	case VerdictDayUnavailable:
		return "day_unavailable"
	case VerdictInsufficientOverlap:
		return "insufficient_overlap"
	default:
		return "unknown"
	}
}

// Calendar is the availability aggregate of one gamer. It owns a copy of the
// gamer's recurrence rules and never mutates them.
type Calendar struct {
	gamerID string
	engine  *recurrence.Engine
	rules   []recurrence.Rule
	now     func() time.Time
}

// NewCalendar builds a calendar for the gamer. Local clock times and weekdays
// are evaluated in loc (UTC when nil) and the reference week is derived from now.
func NewCalendar(gamerID string, loc *time.Location, rules []recurrence.Rule, now func() time.Time) *Calendar {
	if now == nil {
		now = time.Now
	}

	ordered := make([]recurrence.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	return &Calendar{
		gamerID: gamerID,
		engine:  recurrence.NewEngine(loc),
		rules:   ordered,
		now:     now,
	}
}

// GamerID returns the owning gamer's identifier.
func (c *Calendar) GamerID() string {
	return c.gamerID
}

// Location returns the zone the calendar evaluates weekdays in.
func (c *Calendar) Location() *time.Location {
	return c.engine.Location()
}

// Now returns the calendar's current reference instant.
func (c *Calendar) Now() time.Time {
	return c.now()
}

// ActiveRules returns the rules that have not been terminated before reference.
func (c *Calendar) ActiveRules(reference time.Time) []recurrence.Rule {
	active := make([]recurrence.Rule, 0, len(c.rules))
	for _, rule := range c.rules {
		if rule.ActiveAt(reference) {
			active = append(active, rule)
		}
	}
	return active
}

// WeeklyAvailability materializes the coming week relative to the calendar clock.
func (c *Calendar) WeeklyAvailability() WeeklySnapshot {
	return c.WeeklyAvailabilityAt(c.now())
}

// WeeklyAvailabilityAt materializes the week that starts on the first Monday
// after reference. When several rules land on the same weekday the one created
// last wins. Rules that cannot be expanded are ignored.
func (c *Calendar) WeeklyAvailabilityAt(reference time.Time) WeeklySnapshot {
	return c.weekFrom(reference, c.engine.NextWeekStart(reference))
}

// WeeklyAvailabilityFor materializes the week whose Monday has the calendar
// date of weekStart, read in weekStart's own location, with rules active at
// reference.
func (c *Calendar) WeeklyAvailabilityFor(reference, weekStart time.Time) WeeklySnapshot {
	y, m, d := weekStart.Date()
	return c.weekFrom(reference, time.Date(y, m, d, 0, 0, 0, 0, c.Location()))
}

func (c *Calendar) weekFrom(reference, weekStart time.Time) WeeklySnapshot {
	loc := c.Location()
	snapshot := WeeklySnapshot{WeekStart: weekStart}

	for _, rule := range c.ActiveRules(reference) {
		occurrences, err := c.engine.ExpandWeek(rule, snapshot.WeekStart)
		if err != nil {
			continue
		}
		for _, occ := range occurrences {
			interval := Interval{Start: occ.Start, End: occ.End}.Normalize(loc)
			snapshot.set(occ.Start.In(loc).Weekday(), interval)
		}
	}

	return snapshot
}

// NextWeekOccurrences yields the normalized availability of the coming week in
// weekday order. The week is computed when iteration starts and the sequence
// is single-use: ranging over it again yields nothing.
func (c *Calendar) NextWeekOccurrences() iter.Seq[Interval] {
	var consumed atomic.Bool
	return func(yield func(Interval) bool) {
		if consumed.Swap(true) {
			return
		}
		snapshot := c.WeeklyAvailability()
		for i := range snapshot.slots {
			interval, ok := snapshot.SlotAt(i)
			if !ok {
				continue
			}
			if !yield(interval) {
				return
			}
		}
	}
}

// CheckProposedTime reports whether the proposed time is a problem for this
// gamer: true means the gamer is not available for at least minOverlap of it.
func (c *Calendar) CheckProposedTime(start, end time.Time, minOverlap time.Duration) bool {
	return c.Evaluate(start, end, minOverlap) != VerdictAvailable
}

// Evaluate classifies the proposed time against the coming week's availability.
func (c *Calendar) Evaluate(start, end time.Time, minOverlap time.Duration) Verdict {
	return c.EvaluateAt(c.now(), start, end, minOverlap)
}

// EvaluateAt is Evaluate with an explicit reference instant.
//
// The slot for the weekday of start (in the calendar's zone) is moved onto the
// proposed date before comparing instants, so proposals on any week can be
// checked against the weekly pattern.
func (c *Calendar) EvaluateAt(reference, start, end time.Time, minOverlap time.Duration) Verdict {
	snapshot := c.WeeklyAvailabilityAt(reference)
	if snapshot.IsEmpty() {
		return VerdictNoAvailability
	}

	loc := c.Location()
	slot, ok := snapshot.Slot(start.In(loc).Weekday())
	if !ok {
		return VerdictDayUnavailable
	}

	proposed := Interval{Start: start, End: end}
	if !slot.alignTo(start, loc).Overlaps(proposed, minOverlap) {
		return VerdictInsufficientOverlap
	}
	return VerdictAvailable
}
