package timeparser_test

import (
	"testing"
	"time"

	"github.com/Aloksam11/energy-ingestion-engine/internal/timeparser"
)

func TestParseObservedAt_RFC3339(t *testing.T) {
	got, err := timeparser.ParseObservedAt("2026-08-27T10:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestParseObservedAt_OffsetNormalizedToUTC(t *testing.T) {
	got, err := timeparser.ParseObservedAt("2026-08-27T12:00:00+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", got.Location())
	}
}

func TestParseObservedAt_Nanoseconds(t *testing.T) {
	got, err := timeparser.ParseObservedAt("2026-08-27T10:00:00.123456789Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Nanosecond() != 123456789 {
		t.Errorf("expected nanoseconds preserved, got %d", got.Nanosecond())
	}
}

func TestParseObservedAt_ZonelessTreatedAsUTC(t *testing.T) {
	for _, value := range []string{"2026-08-27T10:00:00", "2026-08-27 10:00:00"} {
		got, err := timeparser.ParseObservedAt(value)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", value, err)
		}
		expected := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
		if !got.Equal(expected) {
			t.Errorf("%s: expected %v, got %v", value, expected, got)
		}
	}
}

func TestParseObservedAt_Invalid(t *testing.T) {
	for _, value := range []string{"", "yesterday", "27/08/2026 10:00:00"} {
		if _, err := timeparser.ParseObservedAt(value); err == nil {
			t.Errorf("%q: expected error", value)
		}
	}
}
