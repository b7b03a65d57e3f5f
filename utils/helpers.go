package utils

import (
	"fmt"
	"time"
)

func IsValidInterval(interval string) bool {
	switch interval {
	case "Minute", "Hour", "Day", "Week", "Month", "Quarter", "Year":
		return true
	default:
		return false
	}
}

// FormatDuration renders whole seconds as "Xm Ys".
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// DurationSeconds converts an elapsed time to whole seconds, rounding to the
// nearest second and never going below zero.
func DurationSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}

// ParseTimeRange parses optional RFC3339 start/end values. A missing start
// defaults to seven days before now, a missing end to now.
func ParseTimeRange(startParam, endParam string, now time.Time) (start, end time.Time, err error) {
	if startParam != "" {
		start, err = time.Parse(time.RFC3339, startParam)
		if err != nil {
			return start, end, fmt.Errorf("invalid 'start' timestamp format, use RFC3339 (e.g., 2006-01-02T15:04:05Z): %w", err)
		}
	} else {
		start = now.UTC().Add(-7 * 24 * time.Hour)
	}

	if endParam != "" {
		end, err = time.Parse(time.RFC3339, endParam)
		if err != nil {
			return start, end, fmt.Errorf("invalid 'end' timestamp format, use RFC3339 (e.g., 2006-01-02T15:04:05Z): %w", err)
		}
	} else {
		end = now.UTC()
	}

	if end.Before(start) {
		return start, end, fmt.Errorf("'end' must not be before 'start'")
	}
	return start, end, nil
}
