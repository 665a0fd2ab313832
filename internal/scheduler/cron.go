package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Next returns the first run time after from for a schedule expression.
// Supported forms are @every <duration> (with a d suffix for days),
// @hourly, @daily, @weekly and @monthly.
func Next(expr string, from time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "@monthly":
		return time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, from.Location()), nil
	case expr == "@weekly":
		// next Sunday at midnight
		days := (7 - int(from.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(from.Year(), from.Month(), from.Day()+days, 0, 0, 0, 0, from.Location()), nil
	case expr == "@daily":
		return time.Date(from.Year(), from.Month(), from.Day()+1, 0, 0, 0, 0, from.Location()), nil
	case expr == "@hourly":
		return from.Add(time.Hour).Truncate(time.Hour), nil
	case strings.HasPrefix(expr, "@every "):
		d, err := parseEvery(strings.TrimSpace(strings.TrimPrefix(expr, "@every ")))
		if err != nil {
			return time.Time{}, err
		}
		return from.Add(d), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported schedule %q (use @every <duration>, @hourly, @daily, @weekly or @monthly)", expr)
	}
}

// Validate reports whether expr is a schedule Next understands.
func Validate(expr string) error {
	_, err := Next(expr, time.Now())
	return err
}

// parseEvery accepts time.ParseDuration syntax plus whole days ("7d").
func parseEvery(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}
