package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats the rule every day.
	FrequencyDaily
	// FrequencyWeekly repeats the rule every seven days on the weekday of its start.
	FrequencyWeekly
)

// String returns the storage name of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	default:
		return "unspecified"
	}
}

// ParseFrequency converts a storage name back into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
}

// Rule describes one recurring availability block owned by a calendar.
//
// The first occurrence spans Start..End; subsequent occurrences repeat the same
// local clock times according to Frequency until RecurrenceEnd (inclusive) when set.
type Rule struct {
	ID            string
	CalendarID    string
	Frequency     Frequency
	Start         time.Time
	End           time.Time
	RecurrenceEnd *time.Time
	CreatedAt     time.Time
}

// Duration returns the length of every occurrence generated by the rule.
func (r Rule) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// ActiveAt reports whether the rule has not been terminated before the instant.
func (r Rule) ActiveAt(instant time.Time) bool {
	return r.RecurrenceEnd == nil || !r.RecurrenceEnd.Before(instant)
}

// Occurrence represents a generated instance of a recurrence rule.
type Occurrence struct {
	CalendarID string
	RuleID     string
	Start      time.Time
	End        time.Time
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates wall-clock times in the provided
// location. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the zone the engine evaluates local clock times in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWindow indicates the generation window is empty or inverted.
var ErrInvalidWindow = errors.New("recurrence: generation window end must be after its start")

// ErrInvalidDuration indicates the rule duration is invalid.
var ErrInvalidDuration = errors.New("recurrence: rule duration must be positive")

// GenerateOccurrences produces the occurrences of rule whose start falls within
// [rangeStart, rangeEnd).
//
// The engine enforces the following semantics:
//   - Occurrences keep the local clock time of the rule start in the engine's
//     location, so a 16:00 rule stays at 16:00 across DST transitions.
//   - Occurrence length is the rule's absolute duration.
//   - Nothing is produced before the rule start or after RecurrenceEnd.
//   - Weekly rules recur on the weekday of their start.
func (e *Engine) GenerateOccurrences(rule Rule, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	loc := e.Location()

	if !rule.End.After(rule.Start) {
		return nil, ErrInvalidDuration
	}
	if !rangeEnd.After(rangeStart) {
		return nil, ErrInvalidWindow
	}
	if rule.Frequency != FrequencyDaily && rule.Frequency != FrequencyWeekly {
		return nil, ErrInvalidFrequency
	}

	ruleStart := rule.Start.In(loc)
	duration := rule.Duration()

	occurrences := make([]Occurrence, 0)
	for day := startOfDay(rangeStart, loc); day.Before(rangeEnd); day = day.AddDate(0, 0, 1) {
		if rule.Frequency == FrequencyWeekly && day.Weekday() != ruleStart.Weekday() {
			continue
		}

		start := combineDateTime(day, ruleStart, loc)
		if start.Before(rangeStart) || !start.Before(rangeEnd) {
			continue
		}
		if start.Before(rule.Start) {
			continue
		}
		if rule.RecurrenceEnd != nil && rule.RecurrenceEnd.Before(start) {
			continue
		}

		occurrences = append(occurrences, Occurrence{
			CalendarID: rule.CalendarID,
			RuleID:     rule.ID,
			Start:      start,
			End:        start.Add(duration),
		})
	}

	return occurrences, nil
}

// ExpandWeek returns the occurrences of rule inside the seven days starting at weekStart.
func (e *Engine) ExpandWeek(rule Rule, weekStart time.Time) ([]Occurrence, error) {
	return e.GenerateOccurrences(rule, weekStart, weekStart.AddDate(0, 0, 7))
}

// NextWeekStart returns local midnight of the first Monday strictly after the
// day containing reference.
func (e *Engine) NextWeekStart(reference time.Time) time.Time {
	day := startOfDay(reference, e.Location())
	sinceMonday := WeekdayIndex(day.Weekday())
	return day.AddDate(0, 0, 7-sinceMonday)
}

// WeekStart returns local midnight of the Monday of the week containing reference.
func (e *Engine) WeekStart(reference time.Time) time.Time {
	day := startOfDay(reference, e.Location())
	return day.AddDate(0, 0, -WeekdayIndex(day.Weekday()))
}

// WeekdayIndex maps a weekday onto a Monday-first index (Monday=0 .. Sunday=6).
func WeekdayIndex(day time.Weekday) int {
	// In Go, Sunday == 0 and Monday == 1.
	return (int(day) + 6) % 7
}

// WeekdayAt is the inverse of WeekdayIndex.
func WeekdayAt(index int) time.Weekday {
	return time.Weekday((index + 1) % 7)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func combineDateTime(dateSource, template time.Time, loc *time.Location) time.Time {
	y, m, d := dateSource.In(loc).Date()
	clock := template.In(loc)
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), loc)
}
