package persistence

import "time"

// Gamer represents a player profile together with its availability calendar id.
type Gamer struct {
	ID         string
	Username   string
	Timezone   string
	CalendarID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AvailabilityRule represents a stored recurrence definition owned by a calendar.
// RecurrenceEndsAt is nil while the rule is open ended.
type AvailabilityRule struct {
	ID               string
	CalendarID       string
	Frequency        string
	StartsAt         time.Time
	EndsAt           time.Time
	RecurrenceEndsAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
