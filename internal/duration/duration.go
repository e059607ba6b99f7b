// Package duration parses human-readable duration strings.
//
// Users write "7d" (days) or "2w" (weeks) where Go's time.Duration has no
// unit, and anything time.ParseDuration accepts ("90m", "30s") otherwise.
// Lock expiry in config and the --since filters of ls and log use it.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var calendar = regexp.MustCompile(`^(\d+)([dw])$`)

// Parse parses "Nd", "Nw" or a Go duration. Negative durations are
// rejected.
func Parse(s string) (time.Duration, error) {
	if m := calendar.FindStringSubmatch(s); m != nil {
		num, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid number: %w", err)
		}
		day := time.Duration(num) * 24 * time.Hour
		if m[2] == "w" {
			return 7 * day, nil
		}
		return day, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use 7d, 2w, 90m or 30s)", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q: negative", s)
	}
	return d, nil
}

// Since returns the time s ago from now, for --since style filters.
func Since(s string, now time.Time) (time.Time, error) {
	d, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
