package application

import (
	"context"
	"math"
	"sort"
	"time"

	analytics "canteen-cloud/internal/analytics/domain"
	"canteen-cloud/internal/observability/metrics"
)

// peakWindow is the trailing window ranked for peak-hour detection.
const peakWindow = 7 * 24 * time.Hour

// peakSlots is how many top hours become peak slots.
const peakSlots = 3

// Peak-slot labels by time of day.
const (
	SlotLunchRush  = "Lunch Rush"
	SlotDinnerPeak = "Dinner Peak"
	SlotBreakfast  = "Breakfast"
	SlotRegular    = "Regular"
)

// PeakSlot is one of the top-ranked hours of day.
type PeakSlot struct {
	Hour          string  `json:"hour"`
	MeanOccupancy float64 `json:"meanOccupancy"`
	Label         string  `json:"label"`
}

// PeakHours ranks hours of day over the trailing seven days by mean occupancy
// and returns the top three. Ties rank the earlier hour first, so the output
// is deterministic for identical means.
func (e *Engine) PeakHours(ctx context.Context, locationID string, asOf time.Time) ([]PeakSlot, error) {
	began := time.Now()
	slots, err := e.peakHours(ctx, locationID, asOf)
	metrics.ObserveAggregation("peak_hours", resultLabel(err), time.Since(began))
	return slots, err
}

func (e *Engine) peakHours(ctx context.Context, locationID string, asOf time.Time) ([]PeakSlot, error) {
	if asOf.IsZero() {
		asOf = e.clock.Now()
	}
	records, err := e.loadRange(ctx, locationID, nil, asOf.Add(-peakWindow), asOf, analytics.GranularityDaily)
	if err != nil {
		return nil, err
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, record := range records {
		if record.CurrentOccupancy == nil {
			continue
		}
		hour := record.Timestamp.Hour()
		sums[hour] += float64(*record.CurrentOccupancy)
		counts[hour]++
	}

	type ranked struct {
		hour int
		mean float64
	}
	hours := make([]ranked, 0, len(counts))
	for hour, count := range counts {
		hours = append(hours, ranked{hour: hour, mean: sums[hour] / float64(count)})
	}
	sort.Slice(hours, func(i, j int) bool {
		if hours[i].mean != hours[j].mean {
			return hours[i].mean > hours[j].mean
		}
		return hours[i].hour < hours[j].hour
	})

	limit := peakSlots
	if len(hours) < limit {
		limit = len(hours)
	}
	slots := make([]PeakSlot, 0, limit)
	for _, entry := range hours[:limit] {
		slots = append(slots, PeakSlot{
			Hour:          analytics.HourKey(entry.hour).Label,
			MeanOccupancy: entry.mean,
			Label:         slotLabel(entry.hour),
		})
	}
	return slots, nil
}

// slotLabel applies the fixed time-of-day heuristic.
func slotLabel(hour int) string {
	switch {
	case hour >= 12 && hour < 14:
		return SlotLunchRush
	case hour >= 19 && hour < 21:
		return SlotDinnerPeak
	case hour >= 8 && hour < 9:
		return SlotBreakfast
	default:
		return SlotRegular
	}
}

// DwellBucket is one minute of the dwell-time histogram.
type DwellBucket struct {
	Minute int     `json:"minute"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// DwellTimeDistribution buckets each record's coalesced representative wait
// time by rounded integer minute and reports every bucket's share of the
// total. This is a histogram, not a trend.
func (e *Engine) DwellTimeDistribution(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]DwellBucket, error) {
	began := time.Now()
	buckets, err := e.dwellTimeDistribution(ctx, locationID, counterID, start, end)
	metrics.ObserveAggregation("dwell_distribution", resultLabel(err), time.Since(began))
	return buckets, err
}

func (e *Engine) dwellTimeDistribution(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]DwellBucket, error) {
	records, err := e.loadRange(ctx, locationID, counterID, start, end, analytics.GranularityDaily)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int)
	total := 0
	for _, record := range records {
		wait, ok := record.RepresentativeWait()
		if !ok {
			continue
		}
		minute := int(math.Round(wait))
		counts[minute]++
		total++
	}

	minutes := make([]int, 0, len(counts))
	for minute := range counts {
		minutes = append(minutes, minute)
	}
	sort.Ints(minutes)

	buckets := make([]DwellBucket, 0, len(minutes))
	for _, minute := range minutes {
		buckets = append(buckets, DwellBucket{
			Minute: minute,
			Count:  counts[minute],
			Share:  float64(counts[minute]) / float64(total),
		})
	}
	return buckets, nil
}
