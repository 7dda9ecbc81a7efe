package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/lfg-availability/internal/persistence"
	"github.com/example/lfg-availability/internal/persistence/memory"
	"github.com/example/lfg-availability/internal/testfixtures"
)

type store interface {
	persistence.GamerRepository
	persistence.AvailabilityRuleRepository
}

func stores(t *testing.T) map[string]func(t *testing.T) store {
	t.Helper()
	return map[string]func(t *testing.T) store{
		"memory": func(t *testing.T) store {
			return memory.New()
		},
		"sqlite": func(t *testing.T) store {
			harness := testfixtures.NewSQLiteHarness(t)
			return struct {
				persistence.GamerRepository
				persistence.AvailabilityRuleRepository
			}{harness.Gamers, harness.Rules}
		},
	}
}

func TestRepositoryContract(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	monday := time.Date(2024, time.January, 1, 21, 0, 0, 0, time.UTC)

	for name, open := range stores(t) {
		name, open := name, open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := open(t)

			gamer := persistence.Gamer{ID: "g-1", Username: "gamer1", Timezone: "Etc/GMT+5", CalendarID: "c-1", CreatedAt: base, UpdatedAt: base}
			if err := repo.CreateGamer(ctx, gamer); err != nil {
				t.Fatalf("CreateGamer failed: %v", err)
			}
			clash := gamer
			clash.ID, clash.CalendarID, clash.Username = "g-2", "c-2", "GAMER1"
			if err := repo.CreateGamer(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}
			if _, err := repo.GetGamerByUsername(ctx, "nobody"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			rules := []persistence.AvailabilityRule{
				{ID: "r-2", Frequency: "weekly", StartsAt: monday, EndsAt: monday.Add(time.Hour), CreatedAt: base.Add(time.Second), UpdatedAt: base},
				{ID: "r-1", Frequency: "weekly", StartsAt: monday, EndsAt: monday.Add(2 * time.Hour), CreatedAt: base, UpdatedAt: base},
			}
			if err := repo.ReplaceRules(ctx, gamer.CalendarID, nil, time.Time{}, rules); err != nil {
				t.Fatalf("ReplaceRules failed: %v", err)
			}

			listed, err := repo.ListRules(ctx, gamer.CalendarID)
			if err != nil {
				t.Fatalf("ListRules failed: %v", err)
			}
			if len(listed) != 2 || listed[0].ID != "r-1" || listed[1].ID != "r-2" {
				t.Fatalf("expected creation order, got %#v", listed)
			}

			cutoff := base.Add(48 * time.Hour)
			if err := repo.ReplaceRules(ctx, gamer.CalendarID, []string{"r-1"}, cutoff, nil); err != nil {
				t.Fatalf("ReplaceRules termination failed: %v", err)
			}

			tests := []struct {
				name string
				asOf time.Time
				want int
			}{
				{name: "before termination", asOf: cutoff.Add(-time.Hour), want: 2},
				{name: "at termination", asOf: cutoff, want: 2},
				{name: "after termination", asOf: cutoff.Add(time.Microsecond), want: 1},
			}
			for _, tt := range tests {
				active, err := repo.ListActiveRules(ctx, gamer.CalendarID, tt.asOf)
				if err != nil {
					t.Fatalf("%s: ListActiveRules failed: %v", tt.name, err)
				}
				if len(active) != tt.want {
					t.Fatalf("%s: expected %d active rules, got %d", tt.name, tt.want, len(active))
				}
			}

			if err := repo.ReplaceRules(ctx, "c-missing", nil, cutoff, rules[:1]); err == nil {
				t.Fatalf("expected an error for an unknown calendar")
			}
		})
	}
}

func TestRepositoryContract_FixtureRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	gamer4 := testfixtures.Gamer4()
	harness.Seed(t, gamer4)

	stored, err := harness.Rules.ListActiveRules(ctx, gamer4.CalendarID, testfixtures.ReferenceTime())
	if err != nil {
		t.Fatalf("ListActiveRules failed: %v", err)
	}
	want := gamer4.PersistenceRules()
	if len(stored) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(stored))
	}
	for i := range want {
		if stored[i].ID != want[i].ID || !stored[i].StartsAt.Equal(want[i].StartsAt) || !stored[i].EndsAt.Equal(want[i].EndsAt) {
			t.Fatalf("rule %d did not round trip: got %+v want %+v", i, stored[i], want[i])
		}
	}
}
