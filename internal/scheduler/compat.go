// Package scheduler compares availability calendars of several gamers.
package scheduler

import (
	"sort"
	"time"

	"github.com/example/lfg-availability/internal/availability"
)

// ScanOptions tunes a compatibility scan.
type ScanOptions struct {
	// MinimumOverlap is the shared time a weekday needs to count as a match.
	MinimumOverlap time.Duration
	// Reference fixes the instant every snapshot is computed from. The zero
	// value uses the reference calendar's clock.
	Reference time.Time
}

// Match describes a candidate whose availability overlaps the reference gamer.
type Match struct {
	GamerID  string
	Weekdays []time.Weekday
	// Overlap is the total shared time across the matched weekdays.
	Overlap time.Duration
}

// FindCompatibleSchedules returns the ids of candidates that share at least
// one weekday of availability with reference. The reference gamer itself and
// repeated candidates are ignored.
func FindCompatibleSchedules(reference *availability.Calendar, candidates []*availability.Calendar, opts ScanOptions) []string {
	matches := ScanCandidates(reference, candidates, opts)
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.GamerID)
	}
	return ids
}

// ScanCandidates compares every candidate with the reference calendar weekday
// by weekday. Each candidate is expanded for the dates of the reference
// gamer's coming week, whatever its own zone. Matches are ordered by overlap,
// largest first, then by gamer id.
func ScanCandidates(reference *availability.Calendar, candidates []*availability.Calendar, opts ScanOptions) []Match {
	if reference == nil || len(candidates) == 0 {
		return []Match{}
	}

	at := opts.Reference
	if at.IsZero() {
		at = reference.Now()
	}

	mine := reference.WeeklyAvailabilityAt(at)
	if mine.IsEmpty() {
		return []Match{}
	}

	seen := map[string]struct{}{reference.GamerID(): {}}
	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if _, ok := seen[candidate.GamerID()]; ok {
			continue
		}
		seen[candidate.GamerID()] = struct{}{}

		theirs := candidate.WeeklyAvailabilityFor(at, mine.WeekStart)
		if match, ok := compareWeeks(candidate.GamerID(), mine, theirs, opts.MinimumOverlap); ok {
			matches = append(matches, match)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Overlap == matches[j].Overlap {
			return matches[i].GamerID < matches[j].GamerID
		}
		return matches[i].Overlap > matches[j].Overlap
	})
	return matches
}

func compareWeeks(gamerID string, mine, theirs availability.WeeklySnapshot, minOverlap time.Duration) (Match, bool) {
	match := Match{GamerID: gamerID}
	for _, day := range mine.Weekdays() {
		left, _ := mine.Slot(day)
		right, ok := theirs.Slot(day)
		if !ok || !left.Overlaps(right, minOverlap) {
			continue
		}
		match.Weekdays = append(match.Weekdays, day)
		match.Overlap += left.Intersection(right)
	}
	return match, len(match.Weekdays) > 0
}
