package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// GamerRepository captures the persistence operations needed for gamers.
type GamerRepository interface {
	CreateGamer(ctx context.Context, gamer Gamer) (Gamer, error)
	GetGamer(ctx context.Context, id string) (Gamer, error)
	GetGamerByUsername(ctx context.Context, username string) (Gamer, error)
	ListGamers(ctx context.Context) ([]Gamer, error)
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// GamerService registers and looks up gamers.
type GamerService struct {
	gamers      GamerRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewGamerService constructs a gamer service with the provided dependencies.
func NewGamerService(gamers GamerRepository, idGenerator func() string, now func() time.Time) *GamerService {
	return NewGamerServiceWithLogger(gamers, idGenerator, now, nil)
}

// NewGamerServiceWithLogger constructs a gamer service with a specified logger.
func NewGamerServiceWithLogger(gamers GamerRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *GamerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &GamerService{gamers: gamers, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *GamerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "GamerService", operation, attrs...)
}

// RegisterGamer validates the username and time zone and stores a new gamer
// with an empty calendar.
func (s *GamerService) RegisterGamer(ctx context.Context, params RegisterGamerParams) (gamer Gamer, err error) {
	if s == nil {
		err = fmt.Errorf("GamerService is nil")
		return
	}
	if s.gamers == nil {
		err = fmt.Errorf("gamer repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RegisterGamer", "username", params.Username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register gamer", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("gamer_id", gamer.ID).InfoContext(ctx, "gamer registered")
	}()

	username := strings.TrimSpace(params.Username)
	timezone := strings.TrimSpace(params.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}

	vErr := &ValidationError{}
	if username == "" {
		vErr.add("username", "username is required")
	} else if !usernamePattern.MatchString(username) {
		vErr.add("username", "username must be 1-32 letters, digits, '.', '_' or '-'")
	}
	if timezone == "Local" {
		vErr.add("timezone", "timezone must name an IANA zone, not the host zone")
	} else if _, locErr := time.LoadLocation(timezone); locErr != nil {
		vErr.add("timezone", "timezone is not a known IANA zone")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	created := s.now()
	gamer = Gamer{
		ID:         s.idGenerator(),
		Username:   username,
		Timezone:   timezone,
		CalendarID: s.idGenerator(),
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	var persisted Gamer
	persisted, err = s.gamers.CreateGamer(ctx, gamer)
	if err != nil {
		err = mapRepoError(err, "username")
		return
	}
	gamer = persisted
	return
}

// GetGamer returns the gamer with the given id.
func (s *GamerService) GetGamer(ctx context.Context, id string) (Gamer, error) {
	if s == nil || s.gamers == nil {
		return Gamer{}, fmt.Errorf("gamer repository not configured")
	}
	gamer, err := s.gamers.GetGamer(ctx, strings.TrimSpace(id))
	if err != nil {
		return Gamer{}, mapRepoError(err, "gamer_id")
	}
	return gamer, nil
}

// ResolveGamer looks a gamer up by id first and by username second.
func (s *GamerService) ResolveGamer(ctx context.Context, ref string) (Gamer, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		vErr := &ValidationError{}
		vErr.add("gamer", "gamer id or username is required")
		return Gamer{}, vErr
	}

	gamer, err := s.GetGamer(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return gamer, err
	}

	gamer, err = s.gamers.GetGamerByUsername(ctx, ref)
	if err != nil {
		return Gamer{}, mapRepoError(err, "gamer")
	}
	return gamer, nil
}

// ListGamers returns all registered gamers.
func (s *GamerService) ListGamers(ctx context.Context) ([]Gamer, error) {
	if s == nil || s.gamers == nil {
		return nil, fmt.Errorf("gamer repository not configured")
	}
	gamers, err := s.gamers.ListGamers(ctx)
	if err != nil {
		s.loggerWith(ctx, "ListGamers").ErrorContext(ctx, "failed to list gamers", "error", err, "error_kind", ErrorKind(err))
		return nil, mapRepoError(err, "gamers")
	}
	return gamers, nil
}
