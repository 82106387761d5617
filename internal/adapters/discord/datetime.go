package discord

import (
	"fmt"
	"time"
)

// parseStartTime combines an MM-DD date, an HH:MM clock, and an IANA zone
// into the next matching instant. A date earlier in the calendar than today
// rolls over to next year.
func parseStartTime(date, clock, zone string, now time.Time) (time.Time, error) {
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown timezone %q (use an IANA name like America/New_York)", zone)
	}

	d, err := time.Parse("01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be MM-DD, got %q", date)
	}
	c, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("time must be HH:MM (24h), got %q", clock)
	}

	start := time.Date(now.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
	if !start.After(now) {
		start = start.AddDate(1, 0, 0)
	}
	return start, nil
}
