package recurrence

import (
	"testing"
	"time"
)

func BenchmarkEngineExpandWeek(b *testing.B) {
	engine := NewEngine(est)
	baseStart := time.Date(2024, 5, 6, 16, 0, 0, 0, est)
	rule := Rule{
		ID:         "rule-1",
		CalendarID: "calendar-1",
		Frequency:  FrequencyWeekly,
		Start:      baseStart,
		End:        baseStart.Add(4 * time.Hour),
	}
	weekStart := engine.NextWeekStart(baseStart.AddDate(0, 3, 0))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		occurrences, err := engine.ExpandWeek(rule, weekStart)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(occurrences) != 1 {
			b.Fatal("expected one occurrence per week")
		}
	}
}
