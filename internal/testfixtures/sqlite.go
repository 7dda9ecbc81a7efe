package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/lfg-availability/internal/persistence"
	"github.com/example/lfg-availability/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database.
type SQLiteHarness struct {
	Gamers persistence.GamerRepository
	Rules  persistence.AvailabilityRuleRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Seed stores the gamers and their rules.
func (h *SQLiteHarness) Seed(tb testing.TB, fixtures ...GamerFixture) {
	tb.Helper()
	ctx := context.Background()
	for _, fixture := range fixtures {
		if err := h.Gamers.CreateGamer(ctx, fixture.Persistence()); err != nil {
			tb.Fatalf("seed gamer %s: %v", fixture.ID, err)
		}
		if len(fixture.Rules) == 0 {
			continue
		}
		if err := h.Rules.ReplaceRules(ctx, fixture.CalendarID, nil, ReferenceTime(), fixture.PersistenceRules()); err != nil {
			tb.Fatalf("seed rules for %s: %v", fixture.ID, err)
		}
	}
}

// NewSQLiteHarness opens a migrated database in a temporary directory. The
// harness closes itself when the test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	storage, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(tb.TempDir(), "lfg.db")})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Gamers: storage,
		Rules:  storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
