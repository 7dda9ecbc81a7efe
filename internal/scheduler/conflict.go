package scheduler

import (
	"time"

	"github.com/example/lfg-availability/internal/availability"
)

// Conflict reports a gamer who cannot make a proposed session.
type Conflict struct {
	GamerID string
	// Weekday is the proposal's weekday in the gamer's own zone.
	Weekday time.Weekday
	Reason  availability.Verdict
}

// DetectConflicts evaluates the proposed session against each calendar and
// returns one conflict per gamer who is not available for at least minOverlap
// of it. Calendars are reported in the order given; repeated gamers once.
func DetectConflicts(calendars []*availability.Calendar, proposed availability.Interval, minOverlap time.Duration) []Conflict {
	conflicts := make([]Conflict, 0)
	seen := make(map[string]struct{}, len(calendars))
	for _, calendar := range calendars {
		if calendar == nil {
			continue
		}
		if _, ok := seen[calendar.GamerID()]; ok {
			continue
		}
		seen[calendar.GamerID()] = struct{}{}

		verdict := calendar.Evaluate(proposed.Start, proposed.End, minOverlap)
		if verdict == availability.VerdictAvailable {
			continue
		}
		conflicts = append(conflicts, Conflict{
			GamerID: calendar.GamerID(),
			Weekday: proposed.Start.In(calendar.Location()).Weekday(),
			Reason:  verdict,
		})
	}
	return conflicts
}
