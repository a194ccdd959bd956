package application

import (
	"sort"

	telemetry "canteen-cloud/internal/telemetry/domain"
)

// reconstructTotalServed recovers the true visitor increment from cumulative,
// reset-prone entry counters. Records are re-sorted by timestamp before
// walking consecutive pairs, so out-of-order arrival does not corrupt the
// result. A non-positive delta means a device reset, a duplicate sample or
// noise and is discarded rather than subtracted; this undercounts across a
// reset boundary.
func reconstructTotalServed(records []telemetry.Record) int {
	samples := make([]telemetry.Record, 0, len(records))
	for _, record := range records {
		if record.InCount != nil {
			samples = append(samples, record)
		}
	}
	if len(samples) < 2 {
		return 0
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	total := 0
	for i := 1; i < len(samples); i++ {
		delta := *samples[i].InCount - *samples[i-1].InCount
		if delta > 0 {
			total += delta
		}
	}
	return total
}

// reconstructPerCounter groups counter-level records by counter id and sums
// each counter's reconstructed increment. Site-level records are ignored.
func reconstructPerCounter(records []telemetry.Record) int {
	byCounter := make(map[string][]telemetry.Record)
	for _, record := range records {
		if record.CounterID == nil {
			continue
		}
		byCounter[*record.CounterID] = append(byCounter[*record.CounterID], record)
	}

	total := 0
	for _, group := range byCounter {
		total += reconstructTotalServed(group)
	}
	return total
}

func siteLevelOnly(records []telemetry.Record) []telemetry.Record {
	site := make([]telemetry.Record, 0, len(records))
	for _, record := range records {
		if record.CounterID == nil {
			site = append(site, record)
		}
	}
	return site
}
