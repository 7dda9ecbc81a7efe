package testfixtures

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/lfg-availability/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// GamerServiceDeps captures dependencies for constructing a gamer service.
type GamerServiceDeps struct {
	Gamers application.GamerRepository
	Logger *slog.Logger
}

// NewGamerService builds a gamer service wired to the factory clock and ids.
func (f *ServiceFactory) NewGamerService(deps GamerServiceDeps) *application.GamerService {
	return application.NewGamerServiceWithLogger(
		deps.Gamers,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// AvailabilityServiceDeps captures dependencies for constructing an availability service.
type AvailabilityServiceDeps struct {
	Gamers         application.GamerDirectory
	Rules          application.AvailabilityRuleRepository
	Metrics        application.MetricsRecorder
	MinimumOverlap time.Duration
	Logger         *slog.Logger
}

// NewAvailabilityService builds an availability service wired to the factory
// clock and ids.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	opts := []application.AvailabilityOption{
		application.WithMinimumOverlap(deps.MinimumOverlap),
	}
	if deps.Logger != nil {
		opts = append(opts, application.WithAvailabilityLogger(deps.Logger))
	}
	if deps.Metrics != nil {
		opts = append(opts, application.WithMetrics(deps.Metrics))
	}
	return application.NewAvailabilityService(
		deps.Gamers,
		deps.Rules,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		opts...,
	)
}

// FixtureDirectory serves gamer fixtures to the availability service as both
// its gamer directory and its rule repository.
type FixtureDirectory struct {
	mu     sync.Mutex
	gamers []application.Gamer
	rules  []application.AvailabilityRule
}

// NewFixtureDirectory loads the fixtures and their rules.
func NewFixtureDirectory(fixtures ...GamerFixture) *FixtureDirectory {
	dir := &FixtureDirectory{}
	for _, fixture := range fixtures {
		dir.gamers = append(dir.gamers, fixture.Application())
		dir.rules = append(dir.rules, fixture.ApplicationRules()...)
	}
	sort.Slice(dir.gamers, func(i, j int) bool { return dir.gamers[i].Username < dir.gamers[j].Username })
	return dir
}

// GetGamer returns the fixture gamer with the id.
func (d *FixtureDirectory) GetGamer(ctx context.Context, id string) (application.Gamer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, gamer := range d.gamers {
		if gamer.ID == id {
			return gamer, nil
		}
	}
	return application.Gamer{}, application.ErrNotFound
}

// ListGamers returns every fixture gamer ordered by username.
func (d *FixtureDirectory) ListGamers(ctx context.Context) ([]application.Gamer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]application.Gamer(nil), d.gamers...), nil
}

// ListActiveRules returns the calendar's rules not terminated before asOf.
func (d *FixtureDirectory) ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]application.AvailabilityRule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	active := make([]application.AvailabilityRule, 0)
	for _, rule := range d.rules {
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

// ReplaceRules terminates and creates rules in memory. Unknown ids fail the
// whole call.
func (d *FixtureDirectory) ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []application.AvailabilityRule) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	index := make(map[string]int, len(d.rules))
	for i, rule := range d.rules {
		if rule.CalendarID == calendarID {
			index[rule.ID] = i
		}
	}
	for _, id := range terminateIDs {
		if _, ok := index[id]; !ok {
			return application.ErrNotFound
		}
	}
	for _, id := range terminateIDs {
		end := terminatedAt
		d.rules[index[id]].RecurrenceEndsAt = &end
	}
	d.rules = append(d.rules, create...)
	return nil
}
