package domain

import (
	"testing"
	"time"
)

func TestDateOf(t *testing.T) {
	// 2024-01-02 00:30 in UTC+7 is still 2024-01-01 in UTC.
	loc := time.FixedZone("ICT", 7*3600)
	instant := time.Date(2024, 1, 2, 0, 30, 0, 0, loc)
	if got := DateOf(instant); got != "2024-01-01" {
		t.Errorf("DateOf = %s, want 2024-01-01", got)
	}
}

func TestEndOfDay(t *testing.T) {
	end, err := Date("2024-01-01").EndOfDay()
	if err != nil {
		t.Fatalf("EndOfDay failed: %v", err)
	}
	want := time.Date(2024, 1, 1, 23, 59, 59, 999e6, time.UTC)
	if !end.Equal(want) {
		t.Errorf("EndOfDay = %v, want %v", end, want)
	}

	if _, err := Date("not-a-date").EndOfDay(); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestLastNDays(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := LastNDays(now, 3)
	want := []Date{"2024-02-29", "2024-02-28", "2024-02-27"}
	if len(got) != len(want) {
		t.Fatalf("LastNDays returned %d dates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("LastNDays[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
