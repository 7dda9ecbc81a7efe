package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/lfg-availability/internal/application"
	"github.com/example/lfg-availability/internal/persistence"
	"github.com/example/lfg-availability/internal/recurrence"
)

type gamerRepositoryAdapter struct {
	repo persistence.GamerRepository
}

func newGamerRepositoryAdapter(repo persistence.GamerRepository) *gamerRepositoryAdapter {
	return &gamerRepositoryAdapter{repo: repo}
}

func (a *gamerRepositoryAdapter) CreateGamer(ctx context.Context, gamer application.Gamer) (application.Gamer, error) {
	if err := a.repo.CreateGamer(ctx, toPersistenceGamer(gamer)); err != nil {
		return application.Gamer{}, err
	}
	stored, err := a.repo.GetGamer(ctx, gamer.ID)
	if err != nil {
		return application.Gamer{}, err
	}
	return toApplicationGamer(stored), nil
}

func (a *gamerRepositoryAdapter) GetGamer(ctx context.Context, id string) (application.Gamer, error) {
	stored, err := a.repo.GetGamer(ctx, id)
	if err != nil {
		return application.Gamer{}, err
	}
	return toApplicationGamer(stored), nil
}

func (a *gamerRepositoryAdapter) GetGamerByUsername(ctx context.Context, username string) (application.Gamer, error) {
	stored, err := a.repo.GetGamerByUsername(ctx, username)
	if err != nil {
		return application.Gamer{}, err
	}
	return toApplicationGamer(stored), nil
}

func (a *gamerRepositoryAdapter) ListGamers(ctx context.Context) ([]application.Gamer, error) {
	stored, err := a.repo.ListGamers(ctx)
	if err != nil {
		return nil, err
	}
	gamers := make([]application.Gamer, 0, len(stored))
	for _, gamer := range stored {
		gamers = append(gamers, toApplicationGamer(gamer))
	}
	return gamers, nil
}

type ruleRepositoryAdapter struct {
	repo persistence.AvailabilityRuleRepository
}

func newRuleRepositoryAdapter(repo persistence.AvailabilityRuleRepository) *ruleRepositoryAdapter {
	return &ruleRepositoryAdapter{repo: repo}
}

func (a *ruleRepositoryAdapter) ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]application.AvailabilityRule, error) {
	stored, err := a.repo.ListActiveRules(ctx, calendarID, asOf)
	if err != nil {
		return nil, err
	}
	rules := make([]application.AvailabilityRule, 0, len(stored))
	for _, rule := range stored {
		converted, err := toApplicationRule(rule)
		if err != nil {
			return nil, err
		}
		rules = append(rules, converted)
	}
	return rules, nil
}

func (a *ruleRepositoryAdapter) ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []application.AvailabilityRule) error {
	rules := make([]persistence.AvailabilityRule, 0, len(create))
	for _, rule := range create {
		rules = append(rules, toPersistenceRule(rule))
	}
	return a.repo.ReplaceRules(ctx, calendarID, terminateIDs, terminatedAt, rules)
}

func toPersistenceGamer(gamer application.Gamer) persistence.Gamer {
	return persistence.Gamer{
		ID:         gamer.ID,
		Username:   gamer.Username,
		Timezone:   gamer.Timezone,
		CalendarID: gamer.CalendarID,
		CreatedAt:  gamer.CreatedAt,
		UpdatedAt:  gamer.UpdatedAt,
	}
}

func toApplicationGamer(gamer persistence.Gamer) application.Gamer {
	return application.Gamer{
		ID:         gamer.ID,
		Username:   gamer.Username,
		Timezone:   gamer.Timezone,
		CalendarID: gamer.CalendarID,
		CreatedAt:  gamer.CreatedAt,
		UpdatedAt:  gamer.UpdatedAt,
	}
}

func toPersistenceRule(rule application.AvailabilityRule) persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
		ID:               rule.ID,
		CalendarID:       rule.CalendarID,
		Frequency:        rule.Frequency.String(),
		StartsAt:         rule.StartsAt,
		EndsAt:           rule.EndsAt,
		RecurrenceEndsAt: rule.RecurrenceEndsAt,
		CreatedAt:        rule.CreatedAt,
		UpdatedAt:        rule.UpdatedAt,
	}
}

func toApplicationRule(rule persistence.AvailabilityRule) (application.AvailabilityRule, error) {
	freq, err := recurrence.ParseFrequency(rule.Frequency)
	if err != nil {
		return application.AvailabilityRule{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	return application.AvailabilityRule{
		ID:               rule.ID,
		CalendarID:       rule.CalendarID,
		Frequency:        freq,
		StartsAt:         rule.StartsAt,
		EndsAt:           rule.EndsAt,
		RecurrenceEndsAt: rule.RecurrenceEndsAt,
		CreatedAt:        rule.CreatedAt,
		UpdatedAt:        rule.UpdatedAt,
	}, nil
}
