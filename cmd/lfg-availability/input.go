package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/lfg-availability/internal/application"
)

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

// parseDayFlag reads "mon=16:00-20:00" or "sat=all". Clock values are
// validated by the availability service.
func parseDayFlag(value string) (application.DayAvailability, error) {
	name, block, ok := strings.Cut(strings.TrimSpace(value), "=")
	if !ok {
		return application.DayAvailability{}, fmt.Errorf("day %q: expected <weekday>=<HH:MM>-<HH:MM> or <weekday>=all", value)
	}
	weekday, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return application.DayAvailability{}, fmt.Errorf("day %q: unknown weekday %q", value, name)
	}

	block = strings.TrimSpace(block)
	if strings.EqualFold(block, "all") {
		return application.DayAvailability{Weekday: weekday, AllDay: true}, nil
	}
	start, end, ok := strings.Cut(block, "-")
	if !ok {
		return application.DayAvailability{}, fmt.Errorf("day %q: expected a start-end range", value)
	}
	return application.DayAvailability{Weekday: weekday, Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}, nil
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04"}

// parseInstant accepts RFC 3339, or a zone-less local time read in loc.
func parseInstant(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("time %q: expected RFC 3339 or YYYY-MM-DDTHH:MM", value)
}

func weekdayLabel(day time.Weekday) string {
	return day.String()[:3]
}
