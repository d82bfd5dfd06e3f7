// Package timespec parses the time bounds accepted by the log-filtering
// flags.
package timespec

import (
	"fmt"
	"time"
)

// Parse converts a time bound into a Unix timestamp in milliseconds.
// Two forms are accepted:
//   - a Go duration ("45m", "2h", "1h15m"), read as that long before now
//   - an absolute RFC3339 timestamp ("2026-01-15T09:00:00Z")
func Parse(spec string) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	// Absolute form wins when it parses; "2h" is never valid RFC3339, so the
	// two forms cannot collide.
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2026-01-15T09:00:00Z')", spec)
}

// ParseRange parses the --since and --until flag values into a
// (sinceMs, untilMs) pair. An empty flag leaves its end of the range
// unbounded (zero). When both are given, since must fall before until.
func ParseRange(since, until string) (int64, int64, error) {
	var sinceMS, untilMS int64
	var err error

	if since != "" {
		sinceMS, err = Parse(since)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilMS, err = Parse(until)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMS > 0 && untilMS > 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMS, untilMS, nil
}
