package application

import (
	"time"

	"github.com/example/lfg-availability/internal/availability"
	"github.com/example/lfg-availability/internal/recurrence"
)

// Gamer represents a registered player and the calendar holding their availability.
type Gamer struct {
	ID         string
	Username   string
	Timezone   string
	CalendarID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Location resolves the gamer's IANA time zone.
func (g Gamer) Location() (*time.Location, error) {
	return time.LoadLocation(g.Timezone)
}

// AvailabilityRule is a stored recurring availability block.
type AvailabilityRule struct {
	ID               string
	CalendarID       string
	Frequency        recurrence.Frequency
	StartsAt         time.Time
	EndsAt           time.Time
	RecurrenceEndsAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RegisterGamerParams captures the data needed to register a gamer.
type RegisterGamerParams struct {
	Username string
	Timezone string
}

// DayAvailability describes the block a gamer can play on one weekday.
// Start and End use "15:04" in the gamer's zone; End may be "24:00".
// They are ignored when AllDay is set.
type DayAvailability struct {
	Weekday time.Weekday
	AllDay  bool
	Start   string
	End     string
}

// SetAvailabilityParams replaces a gamer's weekly availability. Weekdays that
// are not listed become unavailable.
type SetAvailabilityParams struct {
	GamerID string
	Days    []DayAvailability
}

// WeeklyAvailability is a gamer's availability for the coming week.
type WeeklyAvailability struct {
	Gamer    Gamer
	Snapshot availability.WeeklySnapshot
}

// CheckProposedTimeParams asks whether a gamer can make a proposed time.
// A nil MinimumOverlap uses the service default.
type CheckProposedTimeParams struct {
	GamerID        string
	Start          time.Time
	End            time.Time
	MinimumOverlap *time.Duration
}

// CheckResult reports the outcome of a proposed time check. Unavailable keeps
// the calendar polarity: true means the gamer cannot make it.
type CheckResult struct {
	GamerID     string
	Verdict     availability.Verdict
	Unavailable bool
}

// FindCompatibleParams asks for gamers whose week overlaps the reference gamer.
// An empty CandidateIDs list scans every registered gamer.
type FindCompatibleParams struct {
	GamerID        string
	CandidateIDs   []string
	MinimumOverlap *time.Duration
}

// CompatibleGamer is a scan result.
type CompatibleGamer struct {
	Gamer    Gamer
	Weekdays []time.Weekday
	Overlap  time.Duration
}

// ProposeSessionParams checks a session time against several gamers at once.
type ProposeSessionParams struct {
	GamerIDs       []string
	Start          time.Time
	End            time.Time
	MinimumOverlap *time.Duration
}

// SessionConflict names a gamer who cannot make a proposed session.
type SessionConflict struct {
	Gamer   Gamer
	Weekday time.Weekday
	Reason  availability.Verdict
}

// SessionProposal is the result of ProposeSession. Viable is true when nobody conflicts.
type SessionProposal struct {
	Start     time.Time
	End       time.Time
	Conflicts []SessionConflict
	Viable    bool
}
