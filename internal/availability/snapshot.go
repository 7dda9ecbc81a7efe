package availability

import (
	"time"

	"github.com/example/lfg-availability/internal/recurrence"
)

// WeeklySnapshot holds at most one availability interval per weekday for a
// single reference week. Slots are indexed Monday=0 .. Sunday=6.
type WeeklySnapshot struct {
	WeekStart time.Time
	slots     [7]Interval
	filled    [7]bool
}

// Slot returns the interval recorded for the weekday, if any.
func (s WeeklySnapshot) Slot(day time.Weekday) (Interval, bool) {
	return s.SlotAt(recurrence.WeekdayIndex(day))
}

// SlotAt returns the interval at a Monday-first index.
func (s WeeklySnapshot) SlotAt(index int) (Interval, bool) {
	if index < 0 || index >= len(s.slots) || !s.filled[index] {
		return Interval{}, false
	}
	return s.slots[index], true
}

// IsEmpty reports whether no weekday has availability.
func (s WeeklySnapshot) IsEmpty() bool {
	for _, ok := range s.filled {
		if ok {
			return false
		}
	}
	return true
}

// Weekdays lists the days that carry availability, Monday first.
func (s WeeklySnapshot) Weekdays() []time.Weekday {
	days := make([]time.Weekday, 0, len(s.slots))
	for i, ok := range s.filled {
		if ok {
			days = append(days, recurrence.WeekdayAt(i))
		}
	}
	return days
}

// Intervals returns the populated slots in weekday order.
func (s WeeklySnapshot) Intervals() []Interval {
	intervals := make([]Interval, 0, len(s.slots))
	for i, ok := range s.filled {
		if ok {
			intervals = append(intervals, s.slots[i])
		}
	}
	return intervals
}

// Equal compares two snapshots by instant.
func (s WeeklySnapshot) Equal(other WeeklySnapshot) bool {
	if !s.WeekStart.Equal(other.WeekStart) {
		return false
	}
	for i := range s.slots {
		if s.filled[i] != other.filled[i] {
			return false
		}
		if !s.filled[i] {
			continue
		}
		if !s.slots[i].Start.Equal(other.slots[i].Start) || !s.slots[i].End.Equal(other.slots[i].End) {
			return false
		}
	}
	return true
}

func (s *WeeklySnapshot) set(day time.Weekday, interval Interval) {
	index := recurrence.WeekdayIndex(day)
	s.slots[index] = interval
	s.filled[index] = true
}
