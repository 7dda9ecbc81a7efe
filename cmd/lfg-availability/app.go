package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/example/lfg-availability/internal/application"
	"github.com/example/lfg-availability/internal/availability"
	"github.com/example/lfg-availability/internal/config"
	"github.com/example/lfg-availability/internal/logging"
	"github.com/example/lfg-availability/internal/metrics"
	"github.com/example/lfg-availability/internal/persistence"
	"github.com/example/lfg-availability/internal/persistence/memory"
	"github.com/example/lfg-availability/internal/persistence/sqlite"
)

// store is the storage surface shared by the SQLite and in-memory drivers.
type store interface {
	persistence.GamerRepository
	persistence.AvailabilityRuleRepository
	Migrate(ctx context.Context) error
	Close() error
}

type appOptions struct {
	Stdout io.Writer
	Stderr io.Writer
	// LoadConfig defaults to reading the --env-file layer and the environment.
	LoadConfig func(envFile string) (config.Config, error)
	// OpenStore defaults to the driver named in the configuration.
	OpenStore func(ctx context.Context, cfg config.Config) (store, error)
	Now       func() time.Time
}

// environment holds everything a command needs once configuration is loaded.
type environment struct {
	cfg          config.Config
	logger       *slog.Logger
	store        store
	registry     *prometheus.Registry
	gamers       *application.GamerService
	availability *application.AvailabilityService
}

func newApp(opts appOptions) *cli.App {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = func(envFile string) (config.Config, error) { return config.LoadFiles(envFile) }
	}
	if opts.OpenStore == nil {
		opts.OpenStore = openStore
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var env *environment

	return &cli.App{
		Name:      "lfg-availability",
		Usage:     "match gamers by weekly availability",
		Writer:    opts.Stdout,
		ErrWriter: opts.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file read before the environment"},
		},
		Before: func(c *cli.Context) error {
			built, err := setup(c.Context, c.String("env-file"), opts)
			if err != nil {
				return err
			}
			env = built
			c.Context = logging.ContextWithLogger(c.Context, env.logger)
			return nil
		},
		After: func(c *cli.Context) error {
			if env == nil {
				return nil
			}
			var errs []error
			if err := metrics.Push(c.Context, env.cfg.MetricsPushURL, env.cfg.MetricsJob, env.registry); err != nil {
				env.logger.Warn("failed to push metrics", "error", err)
			}
			if err := env.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close storage: %w", err))
			}
			return errors.Join(errs...)
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply pending storage migrations",
				Action: func(c *cli.Context) error {
					// Migrations already ran in setup.
					fmt.Fprintf(c.App.Writer, "%s storage is up to date\n", env.cfg.StorageDriver)
					return nil
				},
			},
			{
				Name:  "gamer",
				Usage: "register and list gamers",
				Subcommands: []*cli.Command{
					{
						Name:  "register",
						Usage: "register a gamer",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "username", Required: true},
							&cli.StringFlag{Name: "timezone", Usage: "IANA zone, defaults to LFG_DEFAULT_TIMEZONE"},
						},
						Action: func(c *cli.Context) error {
							timezone := c.String("timezone")
							if timezone == "" {
								timezone = env.cfg.DefaultTimezone
							}
							gamer, err := env.gamers.RegisterGamer(c.Context, application.RegisterGamerParams{
								Username: c.String("username"),
								Timezone: timezone,
							})
							if err != nil {
								return err
							}
							fmt.Fprintf(c.App.Writer, "registered %s (%s) in %s\n", gamer.Username, gamer.ID, gamer.Timezone)
							return nil
						},
					},
					{
						Name:  "list",
						Usage: "list registered gamers",
						Action: func(c *cli.Context) error {
							gamers, err := env.gamers.ListGamers(c.Context)
							if err != nil {
								return err
							}
							tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
							fmt.Fprintln(tw, "USERNAME\tTIMEZONE\tID")
							for _, gamer := range gamers {
								fmt.Fprintf(tw, "%s\t%s\t%s\n", gamer.Username, gamer.Timezone, gamer.ID)
							}
							return tw.Flush()
						},
					},
				},
			},
			{
				Name:  "availability",
				Usage: "set or show weekly availability",
				Subcommands: []*cli.Command{
					{
						Name:  "set",
						Usage: "replace a gamer's weekly availability",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "gamer", Required: true, Usage: "gamer id or username"},
							&cli.StringSliceFlag{Name: "day", Usage: "mon=16:00-20:00 or sat=all, repeatable"},
						},
						Action: func(c *cli.Context) error {
							gamer, err := env.gamers.ResolveGamer(c.Context, c.String("gamer"))
							if err != nil {
								return err
							}
							days := make([]application.DayAvailability, 0, len(c.StringSlice("day")))
							for _, value := range c.StringSlice("day") {
								day, err := parseDayFlag(value)
								if err != nil {
									return err
								}
								days = append(days, day)
							}
							week, err := env.availability.SetWeeklyAvailability(c.Context, application.SetAvailabilityParams{GamerID: gamer.ID, Days: days})
							if err != nil {
								return err
							}
							return printWeek(c.App.Writer, week)
						},
					},
					{
						Name:  "show",
						Usage: "show a gamer's availability for the coming week",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "gamer", Required: true, Usage: "gamer id or username"},
						},
						Action: func(c *cli.Context) error {
							gamer, err := env.gamers.ResolveGamer(c.Context, c.String("gamer"))
							if err != nil {
								return err
							}
							week, err := env.availability.WeeklyAvailability(c.Context, gamer.ID)
							if err != nil {
								return err
							}
							return printWeek(c.App.Writer, week)
						},
					},
				},
			},
			{
				Name:  "check",
				Usage: "check whether a gamer can make a proposed time",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "gamer", Required: true, Usage: "gamer id or username"},
					&cli.StringFlag{Name: "start", Required: true},
					&cli.StringFlag{Name: "end", Required: true},
					&cli.DurationFlag{Name: "min-overlap"},
				},
				Action: func(c *cli.Context) error {
					gamer, err := env.gamers.ResolveGamer(c.Context, c.String("gamer"))
					if err != nil {
						return err
					}
					start, end, err := window(c, gamer)
					if err != nil {
						return err
					}
					result, err := env.availability.CheckProposedTime(c.Context, application.CheckProposedTimeParams{
						GamerID:        gamer.ID,
						Start:          start,
						End:            end,
						MinimumOverlap: minOverlapFlag(c),
					})
					if err != nil {
						return err
					}
					if result.Unavailable {
						fmt.Fprintf(c.App.Writer, "%s: not available (%s)\n", gamer.Username, result.Verdict)
						return nil
					}
					fmt.Fprintf(c.App.Writer, "%s: available\n", gamer.Username)
					return nil
				},
			},
			{
				Name:  "match",
				Usage: "find gamers with compatible weekly availability",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "gamer", Required: true, Usage: "gamer id or username"},
					&cli.StringSliceFlag{Name: "candidate", Usage: "limit the scan to these gamers, repeatable"},
					&cli.DurationFlag{Name: "min-overlap"},
				},
				Action: func(c *cli.Context) error {
					gamer, err := env.gamers.ResolveGamer(c.Context, c.String("gamer"))
					if err != nil {
						return err
					}
					candidates, err := resolveAll(c.Context, env.gamers, c.StringSlice("candidate"))
					if err != nil {
						return err
					}
					matches, err := env.availability.FindCompatiblePlayers(c.Context, application.FindCompatibleParams{
						GamerID:        gamer.ID,
						CandidateIDs:   candidates,
						MinimumOverlap: minOverlapFlag(c),
					})
					if err != nil {
						return err
					}
					if len(matches) == 0 {
						fmt.Fprintln(c.App.Writer, "no compatible gamers")
						return nil
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USERNAME\tOVERLAP\tWEEKDAYS")
					for _, match := range matches {
						labels := make([]string, 0, len(match.Weekdays))
						for _, day := range match.Weekdays {
							labels = append(labels, weekdayLabel(day))
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\n", match.Gamer.Username, match.Overlap, strings.Join(labels, ","))
					}
					return tw.Flush()
				},
			},
			{
				Name:  "propose",
				Usage: "check a session time against several gamers",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "gamer", Required: true, Usage: "gamer id or username, repeatable"},
					&cli.StringFlag{Name: "start", Required: true},
					&cli.StringFlag{Name: "end", Required: true},
					&cli.DurationFlag{Name: "min-overlap"},
				},
				Action: func(c *cli.Context) error {
					ids, err := resolveAll(c.Context, env.gamers, c.StringSlice("gamer"))
					if err != nil {
						return err
					}
					loc, err := time.LoadLocation(env.cfg.DefaultTimezone)
					if err != nil {
						return err
					}
					start, err := parseInstant(c.String("start"), loc)
					if err != nil {
						return err
					}
					end, err := parseInstant(c.String("end"), loc)
					if err != nil {
						return err
					}
					proposal, err := env.availability.ProposeSession(c.Context, application.ProposeSessionParams{
						GamerIDs:       ids,
						Start:          start,
						End:            end,
						MinimumOverlap: minOverlapFlag(c),
					})
					if err != nil {
						return err
					}
					if proposal.Viable {
						fmt.Fprintln(c.App.Writer, "everyone can make it")
						return nil
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USERNAME\tWEEKDAY\tREASON")
					for _, conflict := range proposal.Conflicts {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", conflict.Gamer.Username, weekdayLabel(conflict.Weekday), conflict.Reason)
					}
					return tw.Flush()
				},
			},
		},
	}
}

func setup(ctx context.Context, envFile string, opts appOptions) (*environment, error) {
	cfg, err := opts.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(opts.Stderr, level)

	st, err := opts.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("using in-memory storage; nothing is kept after exit")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	gamers := newGamerRepositoryAdapter(st)

	return &environment{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: registry,
		gamers:   application.NewGamerServiceWithLogger(gamers, uuid.NewString, opts.Now, logger),
		availability: application.NewAvailabilityService(gamers, newRuleRepositoryAdapter(st), uuid.NewString, opts.Now,
			application.WithAvailabilityLogger(logger),
			application.WithMetrics(collector),
			application.WithMinimumOverlap(cfg.MinimumOverlap),
		),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memory.New(), nil
	default:
		st, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLitePath, BusyTimeout: cfg.SQLiteBusyTimeout})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func resolveAll(ctx context.Context, gamers *application.GamerService, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		gamer, err := gamers.ResolveGamer(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("gamer %q: %w", ref, err)
		}
		ids = append(ids, gamer.ID)
	}
	return ids, nil
}

// window reads --start and --end, taking zone-less values in the gamer's zone.
func window(c *cli.Context, gamer application.Gamer) (time.Time, time.Time, error) {
	loc, err := gamer.Location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := parseInstant(c.String("start"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseInstant(c.String("end"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func minOverlapFlag(c *cli.Context) *time.Duration {
	if !c.IsSet("min-overlap") {
		return nil
	}
	d := c.Duration("min-overlap")
	return &d
}

func printWeek(w io.Writer, week application.WeeklyAvailability) error {
	loc, err := week.Gamer.Location()
	if err != nil {
		return err
	}
	snapshot := week.Snapshot
	fmt.Fprintf(w, "%s, week of %s (%s)\n", week.Gamer.Username, snapshot.WeekStart.In(loc).Format("2006-01-02"), loc)
	if snapshot.IsEmpty() {
		fmt.Fprintln(w, "no availability")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, day := range snapshot.Weekdays() {
		slot, _ := snapshot.Slot(day)
		fmt.Fprintf(tw, "%s\t%s\n", weekdayLabel(day), describeSlot(slot, loc))
	}
	return tw.Flush()
}

func describeSlot(slot availability.Interval, loc *time.Location) string {
	if slot.IsAllDay() {
		return "all day"
	}
	return slot.Start.In(loc).Format("15:04") + "-" + slot.End.In(loc).Format("15:04")
}
