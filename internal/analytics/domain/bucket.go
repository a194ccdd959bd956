package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity selects how record timestamps collapse into display buckets.
// Bucketing is lossy: a weekly query spanning several weeks folds multiple
// calendar days onto the same weekday label. Callers pass a range matching
// the intended semantics.
type Granularity string

const (
	GranularityHourly  Granularity = "HOURLY"
	GranularityDaily   Granularity = "DAILY"
	GranularityWeekly  Granularity = "WEEKLY"
	GranularityMonthly Granularity = "MONTHLY"
)

// IsValid checks if the granularity is one of the supported values.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityHourly, GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	default:
		return false
	}
}

// ParseGranularity accepts case-insensitive granularity names.
func ParseGranularity(value string) (Granularity, error) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(value)))
	if !g.IsValid() {
		return "", ErrInvalidGranularity
	}
	return g, nil
}

// BucketKey identifies a display bucket. Ordinal gives the fixed calendar
// order; Label is what dashboards render. Keys sort by ordinal regardless of
// record insertion order.
type BucketKey struct {
	Ordinal int
	Label   string
}

// BucketKeyFor maps a timestamp to its bucket under the granularity.
// HOURLY and DAILY bucket by hour of day, WEEKLY by day of week
// (Monday first), MONTHLY by month.
func BucketKeyFor(granularity Granularity, ts time.Time) BucketKey {
	switch granularity {
	case GranularityWeekly:
		weekday := ts.Weekday()
		return BucketKey{Ordinal: (int(weekday) + 6) % 7, Label: weekday.String()}
	case GranularityMonthly:
		month := ts.Month()
		return BucketKey{Ordinal: int(month) - 1, Label: month.String()}
	default:
		hour := ts.Hour()
		return BucketKey{Ordinal: hour, Label: fmt.Sprintf("%02d:00", hour)}
	}
}

// HourKey is the hour-of-day bucket key used by footfall and peak-hour views.
func HourKey(hour int) BucketKey {
	return BucketKey{Ordinal: hour, Label: fmt.Sprintf("%02d:00", hour)}
}

// SortKeys orders bucket keys by ordinal.
func SortKeys(keys []BucketKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Ordinal < keys[j].Ordinal })
}
