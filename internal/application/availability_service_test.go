package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/lfg-availability/internal/availability"
	"github.com/example/lfg-availability/internal/recurrence"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return loc
}

// weeklyRule anchors a block on the week of 2024-01-01 (a Monday).
func weeklyRule(id, calendarID string, loc *time.Location, day time.Weekday, startHour, endHour int, created time.Time) AvailabilityRule {
	date := time.Date(2024, time.January, 1+recurrence.WeekdayIndex(day), 0, 0, 0, 0, loc)
	start := date.Add(time.Duration(startHour) * time.Hour)
	return AvailabilityRule{
		ID:         id,
		CalendarID: calendarID,
		Frequency:  recurrence.FrequencyWeekly,
		StartsAt:   start,
		EndsAt:     date.Add(time.Duration(endHour) * time.Hour),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

type availabilityHarness struct {
	svc     *AvailabilityService
	gamers  *gamerRepoStub
	rules   *ruleRepoStub
	metrics *metricsStub
	loc     *time.Location
}

// newAvailabilityHarness registers three gamers in the same zone:
// g-1 plays Monday 16-20, g-2 Monday 18-22 and g-3 Tuesday 10-12.
func newAvailabilityHarness(t *testing.T) availabilityHarness {
	t.Helper()

	loc := mustZone(t, "Etc/GMT+5")
	created := fixedNow().Add(-72 * time.Hour)
	gamers := newGamerRepoStub(
		Gamer{ID: "g-1", Username: "gamer1", Timezone: "Etc/GMT+5", CalendarID: "c-1"},
		Gamer{ID: "g-2", Username: "gamer2", Timezone: "Etc/GMT+5", CalendarID: "c-2"},
		Gamer{ID: "g-3", Username: "gamer3", Timezone: "Etc/GMT+5", CalendarID: "c-3"},
	)
	rules := &ruleRepoStub{rules: []AvailabilityRule{
		weeklyRule("r-1", "c-1", loc, time.Monday, 16, 20, created),
		weeklyRule("r-2", "c-2", loc, time.Monday, 18, 22, created),
		weeklyRule("r-3", "c-3", loc, time.Tuesday, 10, 12, created),
	}}
	metrics := &metricsStub{}
	svc := NewAvailabilityService(gamers, rules, sequentialIDs("rule"), fixedNow,
		WithMetrics(metrics), WithMinimumOverlap(30*time.Minute))

	return availabilityHarness{svc: svc, gamers: gamers, rules: rules, metrics: metrics, loc: loc}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func TestAvailabilityService_SetWeeklyAvailability(t *testing.T) {
	t.Parallel()

	t.Run("replaces the active rules", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		ctx := context.Background()

		result, err := h.svc.SetWeeklyAvailability(ctx, SetAvailabilityParams{
			GamerID: "g-1",
			Days: []DayAvailability{
				{Weekday: time.Wednesday, Start: "19:00", End: "24:00"},
				{Weekday: time.Saturday, AllDay: true},
			},
		})
		if err != nil {
			t.Fatalf("SetWeeklyAvailability returned error: %v", err)
		}

		if len(h.rules.calls) != 1 {
			t.Fatalf("expected one replace call, got %d", len(h.rules.calls))
		}
		call := h.rules.calls[0]
		if call.calendarID != "c-1" {
			t.Fatalf("unexpected calendar %q", call.calendarID)
		}
		if len(call.terminateIDs) != 1 || call.terminateIDs[0] != "r-1" {
			t.Fatalf("expected r-1 to be terminated, got %v", call.terminateIDs)
		}
		if want := fixedNow().AddDate(0, 0, -1); !call.terminatedAt.Equal(want) {
			t.Fatalf("expected termination at %v, got %v", want, call.terminatedAt)
		}
		if len(call.created) != 2 {
			t.Fatalf("expected 2 new rules, got %d", len(call.created))
		}

		wed := call.created[0]
		if want := time.Date(2024, time.January, 3, 19, 0, 0, 0, h.loc); !wed.StartsAt.Equal(want) {
			t.Fatalf("expected Wednesday start %v, got %v", want, wed.StartsAt)
		}
		if want := time.Date(2024, time.January, 4, 0, 0, 0, 0, h.loc); !wed.EndsAt.Equal(want) {
			t.Fatalf("expected 24:00 to end at next midnight %v, got %v", want, wed.EndsAt)
		}
		if wed.ID != "rule-1" || wed.Frequency != recurrence.FrequencyWeekly {
			t.Fatalf("unexpected rule: %+v", wed)
		}

		sat := call.created[1]
		if got := sat.EndsAt.Sub(sat.StartsAt); got != 24*time.Hour {
			t.Fatalf("expected all-day rule to span 24h, got %s", got)
		}

		days := result.Snapshot.Weekdays()
		if len(days) != 2 || days[0] != time.Wednesday || days[1] != time.Saturday {
			t.Fatalf("unexpected snapshot weekdays: %v", days)
		}
		if want := time.Date(2024, time.January, 8, 0, 0, 0, 0, h.loc); !result.Snapshot.WeekStart.Equal(want) {
			t.Fatalf("expected week start %v, got %v", want, result.Snapshot.WeekStart)
		}
		if h.metrics.updates != 1 {
			t.Fatalf("expected one recorded update, got %d", h.metrics.updates)
		}

		stored, err := h.svc.WeeklyAvailability(ctx, "g-1")
		if err != nil {
			t.Fatalf("WeeklyAvailability returned error: %v", err)
		}
		if !stored.Snapshot.Equal(result.Snapshot) {
			t.Fatalf("stored week differs from the returned one")
		}
	})

	t.Run("an empty week clears availability", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		result, err := h.svc.SetWeeklyAvailability(context.Background(), SetAvailabilityParams{GamerID: "g-2"})
		if err != nil {
			t.Fatalf("SetWeeklyAvailability returned error: %v", err)
		}
		if !result.Snapshot.IsEmpty() {
			t.Fatalf("expected an empty week, got %v", result.Snapshot.Weekdays())
		}
	})

	t.Run("rejects malformed days", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		tests := []struct {
			name  string
			days  []DayAvailability
			field string
		}{
			{
				name:  "weekday twice",
				days:  []DayAvailability{{Weekday: time.Monday, AllDay: true}, {Weekday: time.Monday, Start: "10:00", End: "11:00"}},
				field: "days.mon",
			},
			{
				name:  "bad clock",
				days:  []DayAvailability{{Weekday: time.Tuesday, Start: "7pm", End: "22:00"}},
				field: "days.tue",
			},
			{
				name:  "inverted block",
				days:  []DayAvailability{{Weekday: time.Friday, Start: "22:00", End: "21:00"}},
				field: "days.fri",
			},
			{
				name:  "midnight as start",
				days:  []DayAvailability{{Weekday: time.Sunday, Start: "24:00", End: "24:00"}},
				field: "days.sun",
			},
			{
				name:  "out of range weekday",
				days:  []DayAvailability{{Weekday: time.Weekday(9), AllDay: true}},
				field: "days",
			},
		}
		for _, tt := range tests {
			_, err := h.svc.SetWeeklyAvailability(context.Background(), SetAvailabilityParams{GamerID: "g-1", Days: tt.days})
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors[tt.field] == "" {
				t.Fatalf("%s: expected validation error on %s, got %v", tt.name, tt.field, err)
			}
		}
		if len(h.rules.calls) != 0 {
			t.Fatalf("invalid input must not reach the repository")
		}
	})

	t.Run("unknown gamer", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		_, err := h.svc.SetWeeklyAvailability(context.Background(), SetAvailabilityParams{GamerID: "ghost"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAvailabilityService_CheckProposedTime(t *testing.T) {
	t.Parallel()

	h := newAvailabilityHarness(t)
	ctx := context.Background()
	monday := func(hour, minute int) time.Time {
		return time.Date(2024, time.January, 8, hour, minute, 0, 0, h.loc)
	}

	tests := []struct {
		name        string
		start, end  time.Time
		minOverlap  *time.Duration
		verdict     availability.Verdict
		unavailable bool
	}{
		{name: "default overlap not met", start: monday(15, 0), end: monday(16, 20), verdict: availability.VerdictInsufficientOverlap, unavailable: true},
		{name: "default overlap met", start: monday(15, 0), end: monday(16, 30), verdict: availability.VerdictAvailable},
		{name: "explicit overlap", start: monday(15, 0), end: monday(16, 20), minOverlap: durationPtr(10 * time.Minute), verdict: availability.VerdictAvailable},
		{name: "day without availability", start: monday(15, 0).AddDate(0, 0, 6), end: monday(17, 0).AddDate(0, 0, 6), verdict: availability.VerdictDayUnavailable, unavailable: true},
	}
	for _, tt := range tests {
		result, err := h.svc.CheckProposedTime(ctx, CheckProposedTimeParams{GamerID: "g-1", Start: tt.start, End: tt.end, MinimumOverlap: tt.minOverlap})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if result.Verdict != tt.verdict || result.Unavailable != tt.unavailable || result.GamerID != "g-1" {
			t.Fatalf("%s: unexpected result %+v", tt.name, result)
		}
	}

	want := []string{"insufficient_overlap", "available", "available", "day_unavailable"}
	if len(h.metrics.verdicts) != len(want) {
		t.Fatalf("expected %d recorded checks, got %v", len(want), h.metrics.verdicts)
	}
	for i := range want {
		if h.metrics.verdicts[i] != want[i] {
			t.Fatalf("check %d: expected %s, got %s", i, want[i], h.metrics.verdicts[i])
		}
	}

	invalid := []struct {
		name   string
		params CheckProposedTimeParams
		field  string
	}{
		{name: "missing start", params: CheckProposedTimeParams{GamerID: "g-1", End: monday(16, 0)}, field: "start"},
		{name: "inverted", params: CheckProposedTimeParams{GamerID: "g-1", Start: monday(17, 0), End: monday(16, 0)}, field: "end"},
		{name: "negative overlap", params: CheckProposedTimeParams{GamerID: "g-1", Start: monday(16, 0), End: monday(17, 0), MinimumOverlap: durationPtr(-time.Minute)}, field: "minimum_overlap"},
	}
	for _, tt := range invalid {
		_, err := h.svc.CheckProposedTime(ctx, tt.params)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors[tt.field] == "" {
			t.Fatalf("%s: expected validation error on %s, got %v", tt.name, tt.field, err)
		}
	}

	if _, err := h.svc.CheckProposedTime(ctx, CheckProposedTimeParams{GamerID: "ghost", Start: monday(16, 0), End: monday(17, 0)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailabilityService_FindCompatiblePlayers(t *testing.T) {
	t.Parallel()

	t.Run("scans every gamer when no candidates are given", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		matches, err := h.svc.FindCompatiblePlayers(context.Background(), FindCompatibleParams{GamerID: "g-1"})
		if err != nil {
			t.Fatalf("FindCompatiblePlayers returned error: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one match, got %+v", matches)
		}
		match := matches[0]
		if match.Gamer.Username != "gamer2" || match.Overlap != 2*time.Hour {
			t.Fatalf("unexpected match: %+v", match)
		}
		if len(match.Weekdays) != 1 || match.Weekdays[0] != time.Monday {
			t.Fatalf("unexpected weekdays: %v", match.Weekdays)
		}
		if len(h.metrics.scans) != 1 || h.metrics.scans[0] != 1 {
			t.Fatalf("expected one recorded scan with one match, got %v", h.metrics.scans)
		}
	})

	t.Run("a larger minimum overlap drops the match", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		matches, err := h.svc.FindCompatiblePlayers(context.Background(), FindCompatibleParams{
			GamerID:        "g-2",
			CandidateIDs:   []string{"g-1", "g-3"},
			MinimumOverlap: durationPtr(3 * time.Hour),
		})
		if err != nil {
			t.Fatalf("FindCompatiblePlayers returned error: %v", err)
		}
		if len(matches) != 0 {
			t.Fatalf("expected no matches, got %+v", matches)
		}
	})

	t.Run("unknown candidate", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		_, err := h.svc.FindCompatiblePlayers(context.Background(), FindCompatibleParams{GamerID: "g-1", CandidateIDs: []string{"g-2", "ghost"}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("listing failure surfaces", func(t *testing.T) {
		t.Parallel()

		h := newAvailabilityHarness(t)
		boom := errors.New("boom")
		h.gamers.listErr = boom
		_, err := h.svc.FindCompatiblePlayers(context.Background(), FindCompatibleParams{GamerID: "g-1"})
		if !errors.Is(err, boom) {
			t.Fatalf("expected listing error, got %v", err)
		}
	})
}

func TestAvailabilityService_ProposeSession(t *testing.T) {
	t.Parallel()

	h := newAvailabilityHarness(t)
	ctx := context.Background()
	start := time.Date(2024, time.January, 8, 18, 30, 0, 0, h.loc)

	proposal, err := h.svc.ProposeSession(ctx, ProposeSessionParams{
		GamerIDs: []string{"g-1", "g-2", "g-3"},
		Start:    start,
		End:      start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ProposeSession returned error: %v", err)
	}
	if proposal.Viable {
		t.Fatalf("expected the proposal to be blocked by g-3")
	}
	if len(proposal.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", proposal.Conflicts)
	}
	conflict := proposal.Conflicts[0]
	if conflict.Gamer.ID != "g-3" || conflict.Weekday != time.Monday || conflict.Reason != availability.VerdictDayUnavailable {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
	if h.metrics.conflictSums != 1 {
		t.Fatalf("expected one recorded conflict, got %d", h.metrics.conflictSums)
	}

	viable, err := h.svc.ProposeSession(ctx, ProposeSessionParams{GamerIDs: []string{"g-1", "g-2"}, Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("ProposeSession returned error: %v", err)
	}
	if !viable.Viable || len(viable.Conflicts) != 0 {
		t.Fatalf("expected a viable proposal, got %+v", viable)
	}

	var vErr *ValidationError
	if _, err := h.svc.ProposeSession(ctx, ProposeSessionParams{Start: start, End: start.Add(time.Hour)}); !errors.As(err, &vErr) || vErr.FieldErrors["gamers"] == "" {
		t.Fatalf("expected validation error on gamers, got %v", err)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		asEnd    bool
		want     time.Duration
		wantOkay bool
	}{
		{value: "00:00", want: 0, wantOkay: true},
		{value: "9:05", want: 9*time.Hour + 5*time.Minute, wantOkay: true},
		{value: " 23:59 ", want: 23*time.Hour + 59*time.Minute, wantOkay: true},
		{value: "24:00", asEnd: true, want: 24 * time.Hour, wantOkay: true},
		{value: "24:00"},
		{value: "24:30", asEnd: true},
		{value: "12:60"},
		{value: "1200"},
		{value: "ab:cd"},
		{value: "-0:30"},
		{value: "+9:05"},
		{value: "10:+5"},
		{value: "1 :05"},
		{value: ""},
	}
	for _, tt := range tests {
		got, ok := parseClock(tt.value, tt.asEnd)
		if ok != tt.wantOkay || got != tt.want {
			t.Fatalf("parseClock(%q, %v) = %s, %v; want %s, %v", tt.value, tt.asEnd, got, ok, tt.want, tt.wantOkay)
		}
	}
}

func TestAvailabilityService_NotConfigured(t *testing.T) {
	t.Parallel()

	var svc *AvailabilityService
	if _, err := svc.WeeklyAvailability(context.Background(), "g-1"); err == nil {
		t.Fatal("expected an error from a nil service")
	}
	if _, err := NewAvailabilityService(nil, nil, nil, nil).CheckProposedTime(context.Background(), CheckProposedTimeParams{}); err == nil {
		t.Fatal("expected an error without repositories")
	}
}
