package timeparser

import (
	"fmt"
	"time"
)

// ParseObservedAt attempts to parse an observation timestamp with multiple formats
func ParseObservedAt(value string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05", // zone-less ISO-8601, treated as UTC
		"2006-01-02 15:04:05",
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}
