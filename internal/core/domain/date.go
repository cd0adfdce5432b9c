package domain

import (
	"fmt"
	"time"
)

// Date is a UTC calendar day in YYYY-MM-DD form.
type Date string

const dateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of the given instant.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(dateLayout))
}

// LastNDays returns the n calendar days before the given instant's date,
// most recent first. The instant's own date is not included.
func LastNDays(now time.Time, n int) []Date {
	dates := make([]Date, 0, n)
	day := now.UTC()
	for i := 1; i <= n; i++ {
		dates = append(dates, DateOf(day.AddDate(0, 0, -i)))
	}
	return dates
}

// EndOfDay returns the instant 23:59:59.999 UTC of d.
func (d Date) EndOfDay() (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, string(d), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", d, err)
	}
	return t.Add(24*time.Hour - time.Millisecond), nil
}

func (d Date) String() string {
	return string(d)
}
