package persistence

import (
	"context"
	"time"
)

// GamerRepository stores gamer profiles. Creating a gamer also creates its calendar.
type GamerRepository interface {
	CreateGamer(ctx context.Context, gamer Gamer) error
	GetGamer(ctx context.Context, id string) (Gamer, error)
	GetGamerByUsername(ctx context.Context, username string) (Gamer, error)
	ListGamers(ctx context.Context) ([]Gamer, error)
}

// AvailabilityRuleRepository stores recurrence rules attached to calendars.
type AvailabilityRuleRepository interface {
	// ListRules returns every rule of the calendar, expired ones included,
	// ordered by creation time.
	ListRules(ctx context.Context, calendarID string) ([]AvailabilityRule, error)
	// ListActiveRules returns rules whose recurrence has not ended before asOf.
	ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]AvailabilityRule, error)
	// ReplaceRules terminates the listed rules at terminatedAt and inserts the
	// new ones as a single unit of work.
	ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []AvailabilityRule) error
}
