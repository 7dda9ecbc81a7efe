package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/lfg-availability/internal/persistence"
)

func TestStorage_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := New()
	now := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	if err := storage.CreateGamer(ctx, persistence.Gamer{ID: "g-1", Username: "gamer1", CalendarID: "c-1", CreatedAt: now}); err != nil {
		t.Fatalf("CreateGamer failed: %v", err)
	}

	end := now.Add(time.Hour)
	rule := persistence.AvailabilityRule{ID: "r-1", Frequency: "weekly", StartsAt: now, EndsAt: end, RecurrenceEndsAt: &end, CreatedAt: now}
	if err := storage.ReplaceRules(ctx, "c-1", nil, time.Time{}, []persistence.AvailabilityRule{rule}); err != nil {
		t.Fatalf("ReplaceRules failed: %v", err)
	}

	*rule.RecurrenceEndsAt = now.Add(-time.Hour)
	rules, err := storage.ListRules(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if !rules[0].RecurrenceEndsAt.Equal(end) {
		t.Fatalf("stored rule changed through caller pointer: %v", rules[0].RecurrenceEndsAt)
	}

	*rules[0].RecurrenceEndsAt = now
	again, _ := storage.ListRules(ctx, "c-1")
	if !again[0].RecurrenceEndsAt.Equal(end) {
		t.Fatalf("stored rule changed through returned pointer: %v", again[0].RecurrenceEndsAt)
	}
}

func TestStorage_ReplaceRulesValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := New()
	now := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	if err := storage.CreateGamer(ctx, persistence.Gamer{ID: "g-1", Username: "gamer1", CalendarID: "c-1", CreatedAt: now}); err != nil {
		t.Fatalf("CreateGamer failed: %v", err)
	}

	tests := []struct {
		name  string
		calID string
		rules []persistence.AvailabilityRule
		want  error
	}{
		{
			name:  "unknown calendar",
			calID: "c-9",
			rules: []persistence.AvailabilityRule{{ID: "r-1", Frequency: "weekly", StartsAt: now, EndsAt: now.Add(time.Hour)}},
			want:  persistence.ErrForeignKeyViolation,
		},
		{
			name:  "empty rule",
			calID: "c-1",
			rules: []persistence.AvailabilityRule{{ID: "r-1", Frequency: "weekly", StartsAt: now, EndsAt: now}},
			want:  persistence.ErrConstraintViolation,
		},
		{
			name:  "duplicate ids in batch",
			calID: "c-1",
			rules: []persistence.AvailabilityRule{
				{ID: "r-1", Frequency: "daily", StartsAt: now, EndsAt: now.Add(time.Hour)},
				{ID: "r-1", Frequency: "daily", StartsAt: now, EndsAt: now.Add(time.Hour)},
			},
			want: persistence.ErrDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := storage.ReplaceRules(ctx, tt.calID, nil, now, tt.rules); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	rules, _ := storage.ListRules(ctx, "c-1")
	if len(rules) != 0 {
		t.Fatalf("rejected batches must not store rules, got %d", len(rules))
	}
}
