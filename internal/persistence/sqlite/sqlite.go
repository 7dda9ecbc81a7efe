// Package sqlite stores gamers and availability rules in a SQLite database
// through modernc.org/sqlite.
package sqlite

import (
	"context"
	"fmt"
)

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*GamerRepository
	*RuleRepository

	pool *ConnectionPool
}

// Open connects to the database described by config. Call Migrate before use.
func Open(ctx context.Context, config Config) (*Storage, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		GamerRepository: NewGamerRepository(pool),
		RuleRepository:  NewRuleRepository(pool),
		pool:            pool,
	}, nil
}

// Migrate applies all pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	manager, err := NewMigrationManager(s.pool.DB())
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	// The manager is not closed: closing it would close the shared pool.
	return manager.Up()
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
