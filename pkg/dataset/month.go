package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Month is a calendar-month bucket. The zero value is invalid and only
// appears for records with no timestamp; such records never reach a
// monthly aggregation.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf buckets a timestamp into its calendar month (UTC).
func MonthOf(t time.Time) Month {
	u := t.UTC()

	return Month{Year: u.Year(), Month: u.Month()}
}

// String formats the month as "2006-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}

	return m.Month < other.Month
}

// SortMonths returns the keys of a per-month map in chronological order.
func SortMonths[V any](byMonth map[Month]V) []Month {
	months := make([]Month, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}

	sort.Slice(months, func(i, j int) bool {
		return months[i].Before(months[j])
	})

	return months
}
