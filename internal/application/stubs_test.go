package application

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	// Test gamers live in named zones.
	_ "time/tzdata"

	"github.com/example/lfg-availability/internal/persistence"
)

type gamerRepoStub struct {
	mu        sync.Mutex
	gamers    map[string]Gamer
	createErr error
	listErr   error
}

func newGamerRepoStub(gamers ...Gamer) *gamerRepoStub {
	stub := &gamerRepoStub{gamers: map[string]Gamer{}}
	for _, gamer := range gamers {
		stub.gamers[gamer.ID] = gamer
	}
	return stub
}

func (r *gamerRepoStub) CreateGamer(ctx context.Context, gamer Gamer) (Gamer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Gamer{}, r.createErr
	}
	for _, existing := range r.gamers {
		if strings.EqualFold(existing.Username, gamer.Username) {
			return Gamer{}, persistence.ErrDuplicate
		}
	}
	r.gamers[gamer.ID] = gamer
	return gamer, nil
}

func (r *gamerRepoStub) GetGamer(ctx context.Context, id string) (Gamer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gamer, ok := r.gamers[id]
	if !ok {
		return Gamer{}, persistence.ErrNotFound
	}
	return gamer, nil
}

func (r *gamerRepoStub) GetGamerByUsername(ctx context.Context, username string) (Gamer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, gamer := range r.gamers {
		if strings.EqualFold(gamer.Username, username) {
			return gamer, nil
		}
	}
	return Gamer{}, persistence.ErrNotFound
}

func (r *gamerRepoStub) ListGamers(ctx context.Context) ([]Gamer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	gamers := make([]Gamer, 0, len(r.gamers))
	for _, gamer := range r.gamers {
		gamers = append(gamers, gamer)
	}
	sort.Slice(gamers, func(i, j int) bool { return gamers[i].ID < gamers[j].ID })
	return gamers, nil
}

type replaceCall struct {
	calendarID   string
	terminateIDs []string
	terminatedAt time.Time
	created      []AvailabilityRule
}

type ruleRepoStub struct {
	mu         sync.Mutex
	rules      []AvailabilityRule
	replaceErr error
	calls      []replaceCall
}

func (r *ruleRepoStub) ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := make([]AvailabilityRule, 0)
	for _, rule := range r.rules {
		if rule.CalendarID != calendarID {
			continue
		}
		if rule.RecurrenceEndsAt != nil && rule.RecurrenceEndsAt.Before(asOf) {
			continue
		}
		active = append(active, rule)
	}
	return active, nil
}

func (r *ruleRepoStub) ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []AvailabilityRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, replaceCall{calendarID: calendarID, terminateIDs: terminateIDs, terminatedAt: terminatedAt, created: create})
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for i := range r.rules {
		for _, id := range terminateIDs {
			if r.rules[i].ID == id {
				end := terminatedAt
				r.rules[i].RecurrenceEndsAt = &end
			}
		}
	}
	r.rules = append(r.rules, create...)
	return nil
}

type metricsStub struct {
	mu           sync.Mutex
	scans        []int
	verdicts     []string
	updates      int
	conflictSums int
}

func (m *metricsStub) RecordScan(matches int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, matches)
}

func (m *metricsStub) RecordProposalCheck(verdict string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, verdict)
}

func (m *metricsStub) RecordAvailabilityUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

func (m *metricsStub) RecordSessionConflicts(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflictSums += count
}
