package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	// Fixture zones are loaded by name, so keep the database embedded.
	_ "time/tzdata"

	"github.com/example/lfg-availability/internal/application"
	"github.com/example/lfg-availability/internal/availability"
	"github.com/example/lfg-availability/internal/persistence"
	"github.com/example/lfg-availability/internal/recurrence"
)

// FixtureTimezone is the zone every canned gamer lives in (UTC-5, no DST).
const FixtureTimezone = "Etc/GMT+5"

var gamerCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical "now" used by fixtures: Tuesday
// 2024-01-02 10:04:05 in FixtureZone. The coming week starts Monday 2024-01-08.
func ReferenceTime() time.Time {
	return referenceTime
}

// FixtureZone returns the location named by FixtureTimezone.
func FixtureZone() *time.Location {
	loc, err := time.LoadLocation(FixtureTimezone)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: load %s: %v", FixtureTimezone, err))
	}
	return loc
}

// AnchorWeek returns local midnight of Monday 2024-01-01, the week fixture
// rules are anchored in.
func AnchorWeek(loc *time.Location) time.Time {
	return time.Date(2024, time.January, 1, 0, 0, 0, 0, loc)
}

// NextWeekDay returns the given clock time on weekday of the week following
// ReferenceTime, in FixtureZone.
func NextWeekDay(day time.Weekday, hour, minute int) time.Time {
	monday := time.Date(2024, time.January, 8, 0, 0, 0, 0, FixtureZone())
	d := monday.AddDate(0, 0, recurrence.WeekdayIndex(day))
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())
}

// GamerFixture is a deterministic gamer together with its weekly rules.
type GamerFixture struct {
	ID         string
	Username   string
	Timezone   string
	CalendarID string
	CreatedAt  time.Time
	Rules      []recurrence.Rule
}

// GamerOption configures the generated gamer fixture.
type GamerOption func(*GamerFixture)

// NewGamerFixture returns a gamer with no availability in FixtureZone.
func NewGamerFixture(opts ...GamerOption) GamerFixture {
	idx := atomic.AddUint64(&gamerCounter, 1)
	id := fmt.Sprintf("gamer-%03d", idx)
	fixture := GamerFixture{
		ID:         id,
		Username:   id,
		Timezone:   FixtureTimezone,
		CalendarID: "calendar-" + id,
		CreatedAt:  referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGamerID overrides the generated id. Username and calendar id follow it.
func WithGamerID(id string) GamerOption {
	return func(f *GamerFixture) {
		f.ID = id
		f.Username = id
		f.CalendarID = "calendar-" + id
	}
}

// WithUsername overrides the username.
func WithUsername(username string) GamerOption {
	return func(f *GamerFixture) {
		f.Username = username
	}
}

// WithTimezone overrides the zone. Options adding rules anchor them in this
// zone, so pass it first.
func WithTimezone(name string) GamerOption {
	return func(f *GamerFixture) {
		f.Timezone = name
	}
}

// WithWeeklySlot adds a weekly rule on day from start to end ("15:04") local time.
func WithWeeklySlot(day time.Weekday, start, end string) GamerOption {
	return func(f *GamerFixture) {
		loc := f.Location()
		date := AnchorWeek(loc).AddDate(0, 0, recurrence.WeekdayIndex(day))
		f.addRule(atClock(date, start), atClock(date, end))
	}
}

// WithAllDay adds a weekly all-day rule on day.
func WithAllDay(day time.Weekday) GamerOption {
	return func(f *GamerFixture) {
		loc := f.Location()
		start := AnchorWeek(loc).AddDate(0, 0, recurrence.WeekdayIndex(day))
		f.addRule(start, start.Add(24*time.Hour))
	}
}

// WithRule appends an explicit rule. Missing ids are filled in.
func WithRule(rule recurrence.Rule) GamerOption {
	return func(f *GamerFixture) {
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s-rule-%d", f.ID, len(f.Rules)+1)
		}
		rule.CalendarID = f.CalendarID
		f.Rules = append(f.Rules, rule)
	}
}

func (f *GamerFixture) addRule(start, end time.Time) {
	n := len(f.Rules) + 1
	f.Rules = append(f.Rules, recurrence.Rule{
		ID:         fmt.Sprintf("%s-rule-%d", f.ID, n),
		CalendarID: f.CalendarID,
		Frequency:  recurrence.FrequencyWeekly,
		Start:      start,
		End:        end,
		CreatedAt:  f.CreatedAt.Add(time.Duration(n) * time.Second),
	})
}

func atClock(date time.Time, clock string) time.Time {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: bad clock %q: %v", clock, err))
	}
	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, date.Location())
}

// Location resolves the fixture's zone.
func (f GamerFixture) Location() *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: load %s: %v", f.Timezone, err))
	}
	return loc
}

// Calendar builds the availability aggregate. A nil now uses ReferenceTime.
func (f GamerFixture) Calendar(now func() time.Time) *availability.Calendar {
	if now == nil {
		now = ReferenceTime
	}
	return availability.NewCalendar(f.ID, f.Location(), f.Rules, now)
}

// Application converts the fixture into the application gamer.
func (f GamerFixture) Application() application.Gamer {
	return application.Gamer{
		ID:         f.ID,
		Username:   f.Username,
		Timezone:   f.Timezone,
		CalendarID: f.CalendarID,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
}

// Persistence converts the fixture into the stored gamer.
func (f GamerFixture) Persistence() persistence.Gamer {
	return persistence.Gamer{
		ID:         f.ID,
		Username:   f.Username,
		Timezone:   f.Timezone,
		CalendarID: f.CalendarID,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
}

// PersistenceRules converts the fixture rules into stored rules.
func (f GamerFixture) PersistenceRules() []persistence.AvailabilityRule {
	rules := make([]persistence.AvailabilityRule, 0, len(f.Rules))
	for _, rule := range f.Rules {
		rules = append(rules, persistence.AvailabilityRule{
			ID:               rule.ID,
			CalendarID:       f.CalendarID,
			Frequency:        rule.Frequency.String(),
			StartsAt:         rule.Start,
			EndsAt:           rule.End,
			RecurrenceEndsAt: rule.RecurrenceEnd,
			CreatedAt:        rule.CreatedAt,
			UpdatedAt:        rule.CreatedAt,
		})
	}
	return rules
}

// ApplicationRules converts the fixture rules into application rules.
func (f GamerFixture) ApplicationRules() []application.AvailabilityRule {
	rules := make([]application.AvailabilityRule, 0, len(f.Rules))
	for _, rule := range f.Rules {
		rules = append(rules, application.AvailabilityRule{
			ID:               rule.ID,
			CalendarID:       f.CalendarID,
			Frequency:        rule.Frequency,
			StartsAt:         rule.Start,
			EndsAt:           rule.End,
			RecurrenceEndsAt: rule.RecurrenceEnd,
			CreatedAt:        rule.CreatedAt,
			UpdatedAt:        rule.CreatedAt,
		})
	}
	return rules
}

// Gamer1 plays Monday to Saturday 16:00-20:00.
func Gamer1() GamerFixture {
	return NewGamerFixture(
		WithGamerID("gamer1"),
		WithWeeklySlot(time.Monday, "16:00", "20:00"),
		WithWeeklySlot(time.Tuesday, "16:00", "20:00"),
		WithWeeklySlot(time.Wednesday, "16:00", "20:00"),
		WithWeeklySlot(time.Thursday, "16:00", "20:00"),
		WithWeeklySlot(time.Friday, "16:00", "20:00"),
		WithWeeklySlot(time.Saturday, "16:00", "20:00"),
	)
}

// Gamer2 plays Wednesday morning and Sunday around noon.
func Gamer2() GamerFixture {
	return NewGamerFixture(
		WithGamerID("gamer2"),
		WithWeeklySlot(time.Wednesday, "09:00", "12:30"),
		WithWeeklySlot(time.Sunday, "10:00", "14:00"),
	)
}

// Gamer3 plays early Tuesday and Sunday afternoon.
func Gamer3() GamerFixture {
	return NewGamerFixture(
		WithGamerID("gamer3"),
		WithWeeklySlot(time.Tuesday, "08:00", "10:00"),
		WithWeeklySlot(time.Sunday, "12:00", "18:00"),
	)
}

// Gamer4 plays Wednesday midday and all weekend.
func Gamer4() GamerFixture {
	return NewGamerFixture(
		WithGamerID("gamer4"),
		WithWeeklySlot(time.Wednesday, "12:00", "14:00"),
		WithAllDay(time.Saturday),
		WithAllDay(time.Sunday),
	)
}

// CompatibilityGamers returns gamer1 through gamer4.
func CompatibilityGamers() []GamerFixture {
	return []GamerFixture{Gamer1(), Gamer2(), Gamer3(), Gamer4()}
}
