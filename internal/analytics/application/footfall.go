package application

import (
	"context"
	"math"
	"time"

	analytics "canteen-cloud/internal/analytics/domain"
	"canteen-cloud/internal/observability/metrics"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

const (
	// counterHoppingRatio flags hours where site inflow outpaces counter
	// inflow enough to suggest visitors sampling several counters.
	counterHoppingRatio = 1.5
	// counterCongestionRatio flags hours where counters absorb noticeably
	// more entries than the site gate recorded.
	counterCongestionRatio = 0.8
	// missingCounterEstimate approximates counter footfall as a share of site
	// footfall when no counter-level record exists for an hour. The inverse
	// fills a missing site stream from counter data. Either way the figure is
	// a placeholder, not measured data.
	missingCounterEstimate = 0.75
)

// Footfall flags.
const (
	FlagCounterHopping    = "counter hopping detected"
	FlagCounterCongestion = "potential congestion at counters"
	FlagNormalFlow        = "normal flow"
)

// FootfallHour compares site-level inflow against summed counter inflow for
// one hour-of-day bucket.
type FootfallHour struct {
	Hour             string  `json:"hour"`
	SiteFootfall     int     `json:"siteFootfall"`
	CounterFootfall  int     `json:"counterFootfall"`
	Ratio            float64 `json:"ratio"`
	Flag             string  `json:"flag"`
	CounterEstimated bool    `json:"counterEstimated"`
	SiteEstimated    bool    `json:"siteEstimated"`
}

// FootfallComparison reconstructs per-hour inflow from site-level and
// counter-level cumulative counters and flags hours where the two streams
// disagree.
func (e *Engine) FootfallComparison(ctx context.Context, locationID string, start, end time.Time) ([]FootfallHour, error) {
	began := time.Now()
	hours, err := e.footfallComparison(ctx, locationID, start, end)
	metrics.ObserveAggregation("footfall_comparison", resultLabel(err), time.Since(began))
	return hours, err
}

func (e *Engine) footfallComparison(ctx context.Context, locationID string, start, end time.Time) ([]FootfallHour, error) {
	records, err := e.loadRange(ctx, locationID, nil, start, end, analytics.GranularityDaily)
	if err != nil {
		return nil, err
	}

	siteByHour := make(map[int][]telemetry.Record)
	counterByHour := make(map[int][]telemetry.Record)
	for _, record := range records {
		if record.InCount == nil {
			continue
		}
		hour := record.Timestamp.Hour()
		if record.CounterID == nil {
			siteByHour[hour] = append(siteByHour[hour], record)
		} else {
			counterByHour[hour] = append(counterByHour[hour], record)
		}
	}

	hours := make([]FootfallHour, 0, len(siteByHour))
	for hour := 0; hour < 24; hour++ {
		siteRecords, haveSite := siteByHour[hour]
		counterRecords, haveCounters := counterByHour[hour]
		if !haveSite && !haveCounters {
			continue
		}

		entry := FootfallHour{Hour: analytics.HourKey(hour).Label}
		entry.SiteFootfall = reconstructTotalServed(siteRecords)
		if haveCounters {
			entry.CounterFootfall = reconstructPerCounter(counterRecords)
		}
		switch {
		case !haveCounters:
			entry.CounterFootfall = int(math.Round(float64(entry.SiteFootfall) * missingCounterEstimate))
			entry.CounterEstimated = true
		case !haveSite:
			// A silent site gate must not masquerade as counter congestion.
			entry.SiteFootfall = int(math.Round(float64(entry.CounterFootfall) / missingCounterEstimate))
			entry.SiteEstimated = true
		}

		entry.Ratio, entry.Flag = classifyFootfall(entry.SiteFootfall, entry.CounterFootfall)
		hours = append(hours, entry)
	}
	return hours, nil
}

func classifyFootfall(site, counter int) (float64, string) {
	if counter == 0 {
		if site == 0 {
			return 1, FlagNormalFlow
		}
		return math.Inf(1), FlagCounterHopping
	}
	ratio := float64(site) / float64(counter)
	switch {
	case ratio > counterHoppingRatio:
		return ratio, FlagCounterHopping
	case ratio < counterCongestionRatio:
		return ratio, FlagCounterCongestion
	default:
		return ratio, FlagNormalFlow
	}
}
