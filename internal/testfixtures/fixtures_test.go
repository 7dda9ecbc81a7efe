package testfixtures

import (
	"testing"
	"time"
)

func TestCompatibilityGamers(t *testing.T) {
	t.Parallel()

	want := map[string]int{"gamer1": 6, "gamer2": 2, "gamer3": 2, "gamer4": 3}
	for _, gamer := range CompatibilityGamers() {
		if got := len(gamer.Rules); got != want[gamer.ID] {
			t.Fatalf("%s: expected %d rules, got %d", gamer.ID, want[gamer.ID], got)
		}
		for _, rule := range gamer.Rules {
			if rule.CalendarID != gamer.CalendarID {
				t.Fatalf("%s: rule %s bound to %s", gamer.ID, rule.ID, rule.CalendarID)
			}
		}
	}
}

func TestNextWeekDay(t *testing.T) {
	t.Parallel()

	got := NextWeekDay(time.Sunday, 12, 30)
	if got.Weekday() != time.Sunday || got.Day() != 14 || got.Hour() != 12 || got.Minute() != 30 {
		t.Fatalf("unexpected next-week Sunday: %v", got)
	}
	if _, offset := got.Zone(); offset != -5*60*60 {
		t.Fatalf("expected UTC-5, got offset %d", offset)
	}
}

func TestGamerFixture_PersistenceRules(t *testing.T) {
	t.Parallel()

	gamer := Gamer4()
	rules := gamer.PersistenceRules()
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[1].Frequency != "weekly" || rules[1].EndsAt.Sub(rules[1].StartsAt) != 24*time.Hour {
		t.Fatalf("unexpected all-day rule: %+v", rules[1])
	}
}
