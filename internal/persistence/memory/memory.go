// Package memory provides an in-process implementation of the persistence
// repositories, used by the CLI's ephemeral mode and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/lfg-availability/internal/persistence"
)

// Storage keeps gamers and availability rules in maps guarded by a mutex.
type Storage struct {
	mu     sync.RWMutex
	gamers map[string]persistence.Gamer
	rules  map[string]persistence.AvailabilityRule
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		gamers: make(map[string]persistence.Gamer),
		rules:  make(map[string]persistence.AvailabilityRule),
	}
}

// Migrate is a no-op for the in-memory store.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Storage) Close() error {
	return nil
}

// CreateGamer stores a new gamer and its calendar.
func (s *Storage) CreateGamer(ctx context.Context, gamer persistence.Gamer) error {
	if gamer.ID == "" || gamer.CalendarID == "" || strings.TrimSpace(gamer.Username) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gamers[gamer.ID]; ok {
		return fmt.Errorf("memory: gamer %s: %w", gamer.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.gamers {
		if strings.EqualFold(existing.Username, gamer.Username) {
			return fmt.Errorf("memory: username %s: %w", gamer.Username, persistence.ErrDuplicate)
		}
		if existing.CalendarID == gamer.CalendarID {
			return fmt.Errorf("memory: calendar %s: %w", gamer.CalendarID, persistence.ErrDuplicate)
		}
	}

	s.gamers[gamer.ID] = gamer
	return nil
}

// GetGamer retrieves a gamer by ID.
func (s *Storage) GetGamer(ctx context.Context, id string) (persistence.Gamer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gamer, ok := s.gamers[id]
	if !ok {
		return persistence.Gamer{}, persistence.ErrNotFound
	}
	return gamer, nil
}

// GetGamerByUsername retrieves a gamer by username, ignoring case.
func (s *Storage) GetGamerByUsername(ctx context.Context, username string) (persistence.Gamer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.TrimSpace(username)
	for _, gamer := range s.gamers {
		if strings.EqualFold(gamer.Username, username) {
			return gamer, nil
		}
	}
	return persistence.Gamer{}, persistence.ErrNotFound
}

// ListGamers returns all gamers ordered by username.
func (s *Storage) ListGamers(ctx context.Context) ([]persistence.Gamer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gamers := make([]persistence.Gamer, 0, len(s.gamers))
	for _, gamer := range s.gamers {
		gamers = append(gamers, gamer)
	}
	sort.Slice(gamers, func(i, j int) bool {
		left, right := strings.ToLower(gamers[i].Username), strings.ToLower(gamers[j].Username)
		if left == right {
			return gamers[i].ID < gamers[j].ID
		}
		return left < right
	})
	return gamers, nil
}

// ListRules returns every rule of the calendar ordered by creation time.
func (s *Storage) ListRules(ctx context.Context, calendarID string) ([]persistence.AvailabilityRule, error) {
	return s.listRules(calendarID, func(persistence.AvailabilityRule) bool { return true }), nil
}

// ListActiveRules returns rules whose recurrence has not ended before asOf.
func (s *Storage) ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]persistence.AvailabilityRule, error) {
	return s.listRules(calendarID, func(rule persistence.AvailabilityRule) bool {
		return rule.RecurrenceEndsAt == nil || !rule.RecurrenceEndsAt.Before(asOf)
	}), nil
}

// ReplaceRules terminates and inserts rules atomically.
func (s *Storage) ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []persistence.AvailabilityRule) error {
	if calendarID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCalendarLocked(calendarID) {
		return fmt.Errorf("memory: calendar %s: %w", calendarID, persistence.ErrForeignKeyViolation)
	}
	for _, id := range terminateIDs {
		rule, ok := s.rules[id]
		if !ok || rule.CalendarID != calendarID {
			return fmt.Errorf("memory: rule %s: %w", id, persistence.ErrNotFound)
		}
	}
	seen := make(map[string]struct{}, len(create))
	for _, rule := range create {
		if err := validateRule(calendarID, rule); err != nil {
			return err
		}
		if _, ok := s.rules[rule.ID]; ok {
			return fmt.Errorf("memory: rule %s: %w", rule.ID, persistence.ErrDuplicate)
		}
		if _, ok := seen[rule.ID]; ok {
			return fmt.Errorf("memory: rule %s: %w", rule.ID, persistence.ErrDuplicate)
		}
		seen[rule.ID] = struct{}{}
	}

	for _, id := range terminateIDs {
		rule := s.rules[id]
		end := terminatedAt
		rule.RecurrenceEndsAt = &end
		rule.UpdatedAt = terminatedAt
		s.rules[id] = rule
	}
	for _, rule := range create {
		rule.CalendarID = calendarID
		s.rules[rule.ID] = cloneRule(rule)
	}
	return nil
}

func (s *Storage) listRules(calendarID string, keep func(persistence.AvailabilityRule) bool) []persistence.AvailabilityRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]persistence.AvailabilityRule, 0)
	for _, rule := range s.rules {
		if rule.CalendarID == calendarID && keep(rule) {
			rules = append(rules, cloneRule(rule))
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules
}

func (s *Storage) hasCalendarLocked(calendarID string) bool {
	for _, gamer := range s.gamers {
		if gamer.CalendarID == calendarID {
			return true
		}
	}
	return false
}

func cloneRule(rule persistence.AvailabilityRule) persistence.AvailabilityRule {
	if rule.RecurrenceEndsAt != nil {
		end := *rule.RecurrenceEndsAt
		rule.RecurrenceEndsAt = &end
	}
	return rule
}

func validateRule(calendarID string, rule persistence.AvailabilityRule) error {
	switch {
	case rule.ID == "":
		return persistence.ErrConstraintViolation
	case rule.CalendarID != "" && rule.CalendarID != calendarID:
		return persistence.ErrConstraintViolation
	case rule.Frequency != "daily" && rule.Frequency != "weekly":
		return persistence.ErrConstraintViolation
	case !rule.EndsAt.After(rule.StartsAt):
		return persistence.ErrConstraintViolation
	case rule.RecurrenceEndsAt != nil && rule.RecurrenceEndsAt.Before(rule.StartsAt):
		return persistence.ErrConstraintViolation
	}
	return nil
}
