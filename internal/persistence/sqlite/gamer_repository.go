package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/lfg-availability/internal/persistence"
)

// GamerRepository implements persistence.GamerRepository using SQLite.
type GamerRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewGamerRepository creates a SQLite gamer repository.
func NewGamerRepository(pool *ConnectionPool) *GamerRepository {
	return &GamerRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const gamerColumns = `g.id, g.username, g.timezone, c.id, g.created_at, g.updated_at`

// CreateGamer stores the gamer together with its empty availability calendar.
func (r *GamerRepository) CreateGamer(ctx context.Context, gamer persistence.Gamer) error {
	if gamer.ID == "" || gamer.CalendarID == "" || strings.TrimSpace(gamer.Username) == "" {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO gamers (id, username, timezone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				gamer.ID,
				gamer.Username,
				gamer.Timezone,
				formatTime(gamer.CreatedAt),
				formatTime(gamer.UpdatedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO availability_calendars (id, gamer_id, created_at) VALUES (?, ?, ?)`,
				gamer.CalendarID,
				gamer.ID,
				formatTime(gamer.CreatedAt),
			)
			return r.mapper.MapError(err)
		})
	})
}

// GetGamer returns the gamer with the given id.
func (r *GamerRepository) GetGamer(ctx context.Context, id string) (persistence.Gamer, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT `+gamerColumns+` FROM gamers g JOIN availability_calendars c ON c.gamer_id = g.id WHERE g.id = ?`,
		id,
	)
	return r.scanGamer(row)
}

// GetGamerByUsername looks a gamer up by username, ignoring case.
func (r *GamerRepository) GetGamerByUsername(ctx context.Context, username string) (persistence.Gamer, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT `+gamerColumns+` FROM gamers g JOIN availability_calendars c ON c.gamer_id = g.id WHERE g.username = ? COLLATE NOCASE`,
		strings.TrimSpace(username),
	)
	return r.scanGamer(row)
}

// ListGamers returns every gamer ordered by username.
func (r *GamerRepository) ListGamers(ctx context.Context) ([]persistence.Gamer, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT `+gamerColumns+` FROM gamers g JOIN availability_calendars c ON c.gamer_id = g.id ORDER BY g.username COLLATE NOCASE, g.id`,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	gamers := []persistence.Gamer{}
	for rows.Next() {
		gamer, err := r.scanGamer(rows)
		if err != nil {
			return nil, err
		}
		gamers = append(gamers, gamer)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return gamers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *GamerRepository) scanGamer(row rowScanner) (persistence.Gamer, error) {
	var (
		gamer                persistence.Gamer
		createdAt, updatedAt string
	)
	if err := row.Scan(&gamer.ID, &gamer.Username, &gamer.Timezone, &gamer.CalendarID, &createdAt, &updatedAt); err != nil {
		return persistence.Gamer{}, r.mapper.MapError(err)
	}

	var err error
	if gamer.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Gamer{}, fmt.Errorf("gamer %s: %w", gamer.ID, err)
	}
	if gamer.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Gamer{}, fmt.Errorf("gamer %s: %w", gamer.ID, err)
	}
	return gamer, nil
}
