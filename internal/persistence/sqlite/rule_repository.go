package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/lfg-availability/internal/persistence"
)

// RuleRepository implements persistence.AvailabilityRuleRepository using SQLite.
type RuleRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewRuleRepository creates a SQLite availability rule repository.
func NewRuleRepository(pool *ConnectionPool) *RuleRepository {
	return &RuleRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const ruleColumns = `id, calendar_id, frequency, starts_at, ends_at, recurrence_ends_at, created_at, updated_at`

// ListRules returns every rule of the calendar ordered by creation time.
func (r *RuleRepository) ListRules(ctx context.Context, calendarID string) ([]persistence.AvailabilityRule, error) {
	if calendarID == "" {
		return []persistence.AvailabilityRule{}, nil
	}
	return r.query(ctx,
		`SELECT `+ruleColumns+` FROM availability_rules WHERE calendar_id = ? ORDER BY created_at ASC, id ASC`,
		calendarID,
	)
}

// ListActiveRules returns the rules whose recurrence has not ended before asOf.
func (r *RuleRepository) ListActiveRules(ctx context.Context, calendarID string, asOf time.Time) ([]persistence.AvailabilityRule, error) {
	if calendarID == "" {
		return []persistence.AvailabilityRule{}, nil
	}
	return r.query(ctx,
		`SELECT `+ruleColumns+` FROM availability_rules
		WHERE calendar_id = ? AND (recurrence_ends_at IS NULL OR recurrence_ends_at >= ?)
		ORDER BY created_at ASC, id ASC`,
		calendarID,
		formatTime(asOf),
	)
}

// ReplaceRules terminates and inserts rules in one transaction.
func (r *RuleRepository) ReplaceRules(ctx context.Context, calendarID string, terminateIDs []string, terminatedAt time.Time, create []persistence.AvailabilityRule) error {
	if calendarID == "" {
		return persistence.ErrConstraintViolation
	}
	for _, rule := range create {
		if err := validateRule(calendarID, rule); err != nil {
			return err
		}
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, id := range terminateIDs {
				result, err := tx.ExecContext(ctx,
					`UPDATE availability_rules SET recurrence_ends_at = ?, updated_at = ? WHERE id = ? AND calendar_id = ?`,
					formatTime(terminatedAt),
					formatTime(terminatedAt),
					id,
					calendarID,
				)
				if err != nil {
					return r.mapper.MapError(err)
				}
				affected, err := result.RowsAffected()
				if err != nil {
					return fmt.Errorf("failed to get rows affected: %w", err)
				}
				if affected == 0 {
					return fmt.Errorf("rule %s: %w", id, persistence.ErrNotFound)
				}
			}

			for _, rule := range create {
				var recurrenceEnd sql.NullString
				if rule.RecurrenceEndsAt != nil {
					recurrenceEnd = sql.NullString{String: formatTime(*rule.RecurrenceEndsAt), Valid: true}
				}
				_, err := tx.ExecContext(ctx,
					`INSERT INTO availability_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					rule.ID,
					calendarID,
					rule.Frequency,
					formatTime(rule.StartsAt),
					formatTime(rule.EndsAt),
					recurrenceEnd,
					formatTime(rule.CreatedAt),
					formatTime(rule.UpdatedAt),
				)
				if err != nil {
					return r.mapper.MapError(err)
				}
			}
			return nil
		})
	})
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...any) ([]persistence.AvailabilityRule, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rules := []persistence.AvailabilityRule{}
	for rows.Next() {
		var (
			rule                                    persistence.AvailabilityRule
			startsAt, endsAt, createdAt, updatedAt string
			recurrenceEnd                           sql.NullString
		)
		if err := rows.Scan(&rule.ID, &rule.CalendarID, &rule.Frequency, &startsAt, &endsAt, &recurrenceEnd, &createdAt, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}

		if rule.StartsAt, err = parseTime(startsAt); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if rule.EndsAt, err = parseTime(endsAt); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if rule.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if recurrenceEnd.Valid {
			end, err := parseTime(recurrenceEnd.String)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
			}
			rule.RecurrenceEndsAt = &end
		}

		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rules, nil
}

func validateRule(calendarID string, rule persistence.AvailabilityRule) error {
	if rule.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if rule.CalendarID != "" && rule.CalendarID != calendarID {
		return persistence.ErrConstraintViolation
	}
	if !rule.EndsAt.After(rule.StartsAt) {
		return persistence.ErrConstraintViolation
	}
	if rule.RecurrenceEndsAt != nil && rule.RecurrenceEndsAt.Before(rule.StartsAt) {
		return persistence.ErrConstraintViolation
	}
	return nil
}
