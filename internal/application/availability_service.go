package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/lfg-availability/internal/availability"
	"github.com/example/lfg-availability/internal/recurrence"
	"github.com/example/lfg-availability/internal/scheduler"
)

// GamerDirectory provides read access to registered gamers.
type GamerDirectory interface {
	GetGamer(ctx context.Context, id string) (Gamer, error)
	ListGamers(ctx context.Context) ([]Gamer, error)
}

// AvailabilityRuleRepository captures the rule storage operations needed by the service.
type AvailabilityRuleRepository interface {
	ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]AvailabilityRule, error)
	ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []AvailabilityRule) error
}

// MetricsRecorder receives counters about matching activity.
type MetricsRecorder interface {
	RecordScan(matches int, duration time.Duration)
	RecordProposalCheck(verdict string)
	RecordAvailabilityUpdate()
	RecordSessionConflicts(count int)
}

type noopMetrics struct{}

func (noopMetrics) RecordScan(int, time.Duration) {}
func (noopMetrics) RecordProposalCheck(string) {}
func (noopMetrics) RecordAvailabilityUpdate() {}
func (noopMetrics) RecordSessionConflicts(int) {}

// AvailabilityService maintains weekly availability and answers matching queries.
type AvailabilityService struct {
	gamers         GamerDirectory
	rules          AvailabilityRuleRepository
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
	metrics        MetricsRecorder
	minimumOverlap time.Duration
}

// AvailabilityOption configures an AvailabilityService.
type AvailabilityOption func(*AvailabilityService)

// WithAvailabilityLogger sets the base logger.
func WithAvailabilityLogger(logger *slog.Logger) AvailabilityOption {
	return func(s *AvailabilityService) {
		s.logger = defaultLogger(logger)
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) AvailabilityOption {
	return func(s *AvailabilityService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithMinimumOverlap sets the overlap used when a request does not specify one.
func WithMinimumOverlap(d time.Duration) AvailabilityOption {
	return func(s *AvailabilityService) {
		if d >= 0 {
			s.minimumOverlap = d
		}
	}
}

// NewAvailabilityService constructs an availability service.
func NewAvailabilityService(gamers GamerDirectory, rules AvailabilityRuleRepository, idGenerator func() string, now func() time.Time, opts ...AvailabilityOption) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &AvailabilityService{
		gamers:      gamers,
		rules:       rules,
		idGenerator: idGenerator,
		now:         now,
		logger:      slog.Default(),
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// SetWeeklyAvailability ends the gamer's current rules as of yesterday and
// stores one weekly rule per listed weekday, anchored in the current week.
func (s *AvailabilityService) SetWeeklyAvailability(ctx context.Context, params SetAvailabilityParams) (result WeeklyAvailability, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "SetWeeklyAvailability", "gamer_id", params.GamerID, "days", len(params.Days))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set weekly availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "weekly availability replaced", "week_start", result.Snapshot.WeekStart)
	}()

	gamer, loc, err := s.loadGamer(ctx, params.GamerID)
	if err != nil {
		return
	}

	blocks, vErr := parseDays(params.Days)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	weekStart := recurrence.NewEngine(loc).WeekStart(now)

	created := make([]AvailabilityRule, 0, len(blocks))
	for _, block := range blocks {
		day := weekStart.AddDate(0, 0, recurrence.WeekdayIndex(block.weekday))
		start := clockOn(day, block.start, loc)
		end := clockOn(day, block.end, loc)
		if block.allDay {
			// A full 24h keeps the block above the all-day threshold on DST days.
			end = start.Add(24 * time.Hour)
		}
		created = append(created, AvailabilityRule{
			ID:         s.idGenerator(),
			CalendarID: gamer.CalendarID,
			Frequency:  recurrence.FrequencyWeekly,
			StartsAt:   start,
			EndsAt:     end,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	current, err := s.rules.ListActiveRules(ctx, gamer.CalendarID, now)
	if err != nil {
		err = mapRepoError(err, "gamer_id")
		return
	}
	terminate := make([]string, 0, len(current))
	for _, rule := range current {
		terminate = append(terminate, rule.ID)
	}

	if err = s.rules.ReplaceRules(ctx, gamer.CalendarID, terminate, now.AddDate(0, 0, -1), created); err != nil {
		err = mapRepoError(err, "days")
		return
	}
	s.metrics.RecordAvailabilityUpdate()

	calendar := availability.NewCalendar(gamer.ID, loc, toRecurrenceRules(created), func() time.Time { return now })
	result = WeeklyAvailability{Gamer: gamer, Snapshot: calendar.WeeklyAvailability()}
	return
}

// WeeklyAvailability returns the gamer's availability for the coming week.
func (s *AvailabilityService) WeeklyAvailability(ctx context.Context, gamerID string) (WeeklyAvailability, error) {
	if err := s.ready(); err != nil {
		return WeeklyAvailability{}, err
	}

	now := s.now()
	gamer, calendar, err := s.calendarFor(ctx, gamerID, now)
	if err != nil {
		s.loggerWith(ctx, "WeeklyAvailability", "gamer_id", gamerID).
			ErrorContext(ctx, "failed to load availability", "error", err, "error_kind", ErrorKind(err))
		return WeeklyAvailability{}, err
	}
	return WeeklyAvailability{Gamer: gamer, Snapshot: calendar.WeeklyAvailability()}, nil
}

// CheckProposedTime evaluates a proposed time against the gamer's coming week.
func (s *AvailabilityService) CheckProposedTime(ctx context.Context, params CheckProposedTimeParams) (result CheckResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CheckProposedTime", "gamer_id", params.GamerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check proposed time", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "proposed time checked", "verdict", result.Verdict.String())
	}()

	vErr := &ValidationError{}
	minOverlap := s.resolveOverlap(params.MinimumOverlap, vErr)
	validateWindow(params.Start, params.End, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	gamer, calendar, err := s.calendarFor(ctx, params.GamerID, s.now())
	if err != nil {
		return
	}

	verdict := calendar.Evaluate(params.Start, params.End, minOverlap)
	s.metrics.RecordProposalCheck(verdict.String())
	result = CheckResult{
		GamerID:     gamer.ID,
		Verdict:     verdict,
		Unavailable: verdict != availability.VerdictAvailable,
	}
	return
}

// FindCompatiblePlayers returns the gamers whose coming week shares at least
// one weekday of availability with the requesting gamer.
func (s *AvailabilityService) FindCompatiblePlayers(ctx context.Context, params FindCompatibleParams) (matches []CompatibleGamer, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "FindCompatiblePlayers", "gamer_id", params.GamerID, "candidates", len(params.CandidateIDs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to find compatible players", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "compatibility scan finished", "matches", len(matches))
	}()

	vErr := &ValidationError{}
	minOverlap := s.resolveOverlap(params.MinimumOverlap, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	_, reference, err := s.calendarFor(ctx, params.GamerID, now)
	if err != nil {
		return
	}

	candidates, err := s.candidateGamers(ctx, params.CandidateIDs)
	if err != nil {
		return
	}

	byID := make(map[string]Gamer, len(candidates))
	calendars := make([]*availability.Calendar, 0, len(candidates))
	for _, candidate := range candidates {
		calendar, calErr := s.buildCalendar(ctx, candidate, now)
		if calErr != nil {
			err = calErr
			return
		}
		byID[candidate.ID] = candidate
		calendars = append(calendars, calendar)
	}

	started := time.Now()
	found := scheduler.ScanCandidates(reference, calendars, scheduler.ScanOptions{MinimumOverlap: minOverlap, Reference: now})
	s.metrics.RecordScan(len(found), time.Since(started))

	matches = make([]CompatibleGamer, 0, len(found))
	for _, match := range found {
		matches = append(matches, CompatibleGamer{
			Gamer:    byID[match.GamerID],
			Weekdays: match.Weekdays,
			Overlap:  match.Overlap,
		})
	}
	return
}

// ProposeSession checks a session time against several gamers and reports who
// cannot make it.
func (s *AvailabilityService) ProposeSession(ctx context.Context, params ProposeSessionParams) (proposal SessionProposal, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ProposeSession", "gamers", len(params.GamerIDs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to evaluate session proposal", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session proposal evaluated", "conflicts", len(proposal.Conflicts), "viable", proposal.Viable)
	}()

	vErr := &ValidationError{}
	minOverlap := s.resolveOverlap(params.MinimumOverlap, vErr)
	validateWindow(params.Start, params.End, vErr)
	if len(params.GamerIDs) == 0 {
		vErr.add("gamers", "at least one gamer is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	byID := make(map[string]Gamer, len(params.GamerIDs))
	calendars := make([]*availability.Calendar, 0, len(params.GamerIDs))
	for _, id := range params.GamerIDs {
		gamer, calendar, calErr := s.calendarFor(ctx, id, now)
		if calErr != nil {
			err = calErr
			return
		}
		byID[gamer.ID] = gamer
		calendars = append(calendars, calendar)
	}

	conflicts := scheduler.DetectConflicts(calendars, availability.Interval{Start: params.Start, End: params.End}, minOverlap)
	s.metrics.RecordSessionConflicts(len(conflicts))

	proposal = SessionProposal{
		Start:     params.Start,
		End:       params.End,
		Conflicts: make([]SessionConflict, 0, len(conflicts)),
		Viable:    len(conflicts) == 0,
	}
	for _, conflict := range conflicts {
		proposal.Conflicts = append(proposal.Conflicts, SessionConflict{
			Gamer:   byID[conflict.GamerID],
			Weekday: conflict.Weekday,
			Reason:  conflict.Reason,
		})
	}
	return
}

func (s *AvailabilityService) ready() error {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	if s.gamers == nil || s.rules == nil {
		return fmt.Errorf("availability repositories not configured")
	}
	return nil
}

func (s *AvailabilityService) resolveOverlap(requested *time.Duration, vErr *ValidationError) time.Duration {
	if requested == nil {
		return s.minimumOverlap
	}
	if *requested < 0 {
		vErr.add("minimum_overlap", "minimum overlap must not be negative")
		return 0
	}
	return *requested
}

func (s *AvailabilityService) loadGamer(ctx context.Context, id string) (Gamer, *time.Location, error) {
	gamer, err := s.gamers.GetGamer(ctx, strings.TrimSpace(id))
	if err != nil {
		return Gamer{}, nil, mapRepoError(err, "gamer_id")
	}
	loc, err := gamer.Location()
	if err != nil {
		return Gamer{}, nil, fmt.Errorf("gamer %s has unusable timezone %q: %w", gamer.ID, gamer.Timezone, err)
	}
	return gamer, loc, nil
}

func (s *AvailabilityService) calendarFor(ctx context.Context, id string, asOf time.Time) (Gamer, *availability.Calendar, error) {
	gamer, err := s.gamers.GetGamer(ctx, strings.TrimSpace(id))
	if err != nil {
		return Gamer{}, nil, mapRepoError(err, "gamer_id")
	}
	calendar, err := s.buildCalendar(ctx, gamer, asOf)
	if err != nil {
		return Gamer{}, nil, err
	}
	return gamer, calendar, nil
}

// buildCalendar fetches the active rules and pins the calendar clock to asOf
// so every calendar in one request shares the same reference week.
func (s *AvailabilityService) buildCalendar(ctx context.Context, gamer Gamer, asOf time.Time) (*availability.Calendar, error) {
	loc, err := gamer.Location()
	if err != nil {
		return nil, fmt.Errorf("gamer %s has unusable timezone %q: %w", gamer.ID, gamer.Timezone, err)
	}
	rules, err := s.rules.ListActiveRules(ctx, gamer.CalendarID, asOf)
	if err != nil {
		return nil, mapRepoError(err, "gamer_id")
	}
	return availability.NewCalendar(gamer.ID, loc, toRecurrenceRules(rules), func() time.Time { return asOf }), nil
}

func (s *AvailabilityService) candidateGamers(ctx context.Context, ids []string) ([]Gamer, error) {
	if len(ids) == 0 {
		gamers, err := s.gamers.ListGamers(ctx)
		if err != nil {
			return nil, mapRepoError(err, "candidates")
		}
		return gamers, nil
	}

	gamers := make([]Gamer, 0, len(ids))
	for _, id := range ids {
		gamer, err := s.gamers.GetGamer(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, mapRepoError(err, "candidates")
		}
		gamers = append(gamers, gamer)
	}
	return gamers, nil
}

func toRecurrenceRules(rules []AvailabilityRule) []recurrence.Rule {
	converted := make([]recurrence.Rule, 0, len(rules))
	for _, rule := range rules {
		converted = append(converted, recurrence.Rule{
			ID:            rule.ID,
			CalendarID:    rule.CalendarID,
			Frequency:     rule.Frequency,
			Start:         rule.StartsAt,
			End:           rule.EndsAt,
			RecurrenceEnd: rule.RecurrenceEndsAt,
			CreatedAt:     rule.CreatedAt,
		})
	}
	return converted
}

func validateWindow(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		vErr.add("end", "end must be after start")
	}
}

type dayBlock struct {
	weekday time.Weekday
	start   time.Duration
	end     time.Duration
	allDay  bool
}

// clockOn returns the instant at the local clock offset on day. An offset of
// 24h is midnight of the following day.
func clockOn(day time.Time, offset time.Duration, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	hours := int(offset / time.Hour)
	minutes := int((offset % time.Hour) / time.Minute)
	return time.Date(y, m, d, hours, minutes, 0, 0, loc)
}

// parseDays validates the submitted week and converts clock strings into
// offsets from local midnight.
func parseDays(days []DayAvailability) ([]dayBlock, *ValidationError) {
	vErr := &ValidationError{}
	seen := make(map[time.Weekday]bool, len(days))
	blocks := make([]dayBlock, 0, len(days))

	for _, day := range days {
		if day.Weekday < time.Sunday || day.Weekday > time.Saturday {
			vErr.add("days", "unknown weekday")
			continue
		}
		field := "days." + strings.ToLower(day.Weekday.String()[:3])
		if seen[day.Weekday] {
			vErr.add(field, "weekday listed more than once")
			continue
		}
		seen[day.Weekday] = true

		if day.AllDay {
			blocks = append(blocks, dayBlock{weekday: day.Weekday, end: 24 * time.Hour, allDay: true})
			continue
		}

		start, ok := parseClock(day.Start, false)
		if !ok {
			vErr.add(field, "start must be HH:MM")
			continue
		}
		end, ok := parseClock(day.End, true)
		if !ok {
			vErr.add(field, "end must be HH:MM")
			continue
		}
		if end <= start {
			vErr.add(field, "end must be after start")
			continue
		}
		blocks = append(blocks, dayBlock{weekday: day.Weekday, start: start, end: end})
	}
	return blocks, vErr
}

// parseClock reads "15:04" as an offset from midnight. "24:00" is accepted
// only as an end time.
func parseClock(value string, allowMidnightEnd bool) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	hours, minutes, found := strings.Cut(value, ":")
	if !found || len(hours) == 0 || len(hours) > 2 || len(minutes) != 2 {
		return 0, false
	}
	if strings.Trim(hours, "0123456789") != "" || strings.Trim(minutes, "0123456789") != "" {
		return 0, false
	}
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	if h == 24 && m == 0 && allowMidnightEnd {
		return 24 * time.Hour, true
	}
	if h < 0 || h > 23 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, true
}
