package application

import (
	"context"
	"math"
	"testing"
	"time"

	telemetry "canteen-cloud/internal/telemetry/domain"
)

func TestClassifyFootfall(t *testing.T) {
	cases := []struct {
		name     string
		site     int
		counter  int
		wantFlag string
	}{
		{name: "hopping above threshold", site: 160, counter: 100, wantFlag: FlagCounterHopping},
		{name: "congestion below threshold", site: 70, counter: 100, wantFlag: FlagCounterCongestion},
		{name: "normal in band", site: 100, counter: 100, wantFlag: FlagNormalFlow},
		{name: "exactly 1.5 is normal", site: 150, counter: 100, wantFlag: FlagNormalFlow},
		{name: "exactly 0.8 is normal", site: 80, counter: 100, wantFlag: FlagNormalFlow},
		{name: "both zero", site: 0, counter: 0, wantFlag: FlagNormalFlow},
		{name: "site only", site: 40, counter: 0, wantFlag: FlagCounterHopping},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, flag := classifyFootfall(tc.site, tc.counter)
			if flag != tc.wantFlag {
				t.Fatalf("got %q, want %q", flag, tc.wantFlag)
			}
		})
	}
}

func TestClassifyFootfall_Ratio(t *testing.T) {
	ratio, _ := classifyFootfall(120, 100)
	if math.Abs(ratio-1.2) > 1e-9 {
		t.Fatalf("expected ratio 1.2, got %v", ratio)
	}
	ratio, _ = classifyFootfall(40, 0)
	if !math.IsInf(ratio, 1) {
		t.Fatalf("expected +Inf ratio for site-only hour, got %v", ratio)
	}
}

func TestFootfallComparison_EstimatesMissingCounters(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	records := []countSample{
		{counterID: "", ts: base, inCount: 1000},
		{counterID: "", ts: base.Add(30 * time.Minute), inCount: 1100},
	}
	engine := newTestEngine(t, &stubStore{records: buildCountRecords(records)})

	hours, err := engine.FootfallComparison(context.Background(), "loc-1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("footfall comparison: %v", err)
	}
	if len(hours) != 1 {
		t.Fatalf("expected one hour, got %d", len(hours))
	}
	entry := hours[0]
	if entry.Hour != "09:00" {
		t.Fatalf("expected 09:00, got %q", entry.Hour)
	}
	if entry.SiteFootfall != 100 {
		t.Fatalf("expected site footfall 100, got %d", entry.SiteFootfall)
	}
	if !entry.CounterEstimated || entry.CounterFootfall != 75 {
		t.Fatalf("expected estimated counter footfall 75, got %+v", entry)
	}
	// 100/75 sits inside the normal band, so the estimate never flags itself.
	if entry.Flag != FlagNormalFlow {
		t.Fatalf("expected normal flow, got %q", entry.Flag)
	}
}

func TestFootfallComparison_EstimatesMissingSiteStream(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	records := []countSample{
		{counterID: "ctr-a", ts: base, inCount: 500},
		{counterID: "ctr-a", ts: base.Add(30 * time.Minute), inCount: 575},
	}
	engine := newTestEngine(t, &stubStore{records: buildCountRecords(records)})

	hours, err := engine.FootfallComparison(context.Background(), "loc-1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("footfall comparison: %v", err)
	}
	if len(hours) != 1 {
		t.Fatalf("expected one hour, got %d", len(hours))
	}
	entry := hours[0]
	if entry.CounterFootfall != 75 {
		t.Fatalf("expected counter footfall 75, got %d", entry.CounterFootfall)
	}
	if !entry.SiteEstimated || entry.SiteFootfall != 100 {
		t.Fatalf("expected estimated site footfall 100, got %+v", entry)
	}
	if entry.CounterEstimated {
		t.Fatalf("measured counters must not be marked estimated")
	}
	// A dead site gate must not read as counter congestion.
	if entry.Flag != FlagNormalFlow {
		t.Fatalf("expected normal flow, got %q", entry.Flag)
	}
}

func TestFootfallComparison_FlagsDivergentHours(t *testing.T) {
	base := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	records := []countSample{
		{counterID: "", ts: base, inCount: 0},
		{counterID: "", ts: base.Add(30 * time.Minute), inCount: 200},
		{counterID: "ctr-a", ts: base, inCount: 0},
		{counterID: "ctr-a", ts: base.Add(30 * time.Minute), inCount: 100},
	}
	engine := newTestEngine(t, &stubStore{records: buildCountRecords(records)})

	hours, err := engine.FootfallComparison(context.Background(), "loc-1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("footfall comparison: %v", err)
	}
	if len(hours) != 1 {
		t.Fatalf("expected one hour, got %d", len(hours))
	}
	entry := hours[0]
	if entry.CounterEstimated {
		t.Fatalf("measured counters must not be marked estimated")
	}
	if entry.Flag != FlagCounterHopping {
		t.Fatalf("ratio 2.0 must flag counter hopping, got %q", entry.Flag)
	}
}

type countSample struct {
	counterID string
	ts        time.Time
	inCount   int
}

func buildCountRecords(samples []countSample) []telemetry.Record {
	records := make([]telemetry.Record, 0, len(samples))
	for _, sample := range samples {
		var counterID *string
		if sample.counterID != "" {
			id := sample.counterID
			counterID = &id
		}
		record := countRecord(counterID, sample.ts, sample.inCount)
		records = append(records, record)
	}
	return records
}
