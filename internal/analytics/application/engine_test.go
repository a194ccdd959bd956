package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	analytics "canteen-cloud/internal/analytics/domain"
	masterdata "canteen-cloud/internal/masterdata/domain"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

type stubStore struct {
	records []telemetry.Record
	err     error
}

func (s *stubStore) Save(ctx context.Context, record *telemetry.Record) error { return nil }

func (s *stubStore) FindByOwnerAndRange(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]telemetry.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	matched := make([]telemetry.Record, 0, len(s.records))
	for _, record := range s.records {
		if record.LocationID != locationID {
			continue
		}
		if counterID != nil && (record.CounterID == nil || *record.CounterID != *counterID) {
			continue
		}
		if record.Timestamp.Before(start) || !record.Timestamp.Before(end) {
			continue
		}
		matched = append(matched, record)
	}
	return matched, nil
}

func (s *stubStore) FindLatestPerCounter(ctx context.Context, locationID string) ([]telemetry.Record, error) {
	return nil, nil
}

type stubLocations struct {
	locations map[string]*masterdata.Location
	err       error
}

func (s *stubLocations) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.locations[id], nil
}

func (s *stubLocations) GetByCode(ctx context.Context, code string) (*masterdata.Location, error) {
	return nil, nil
}

func (s *stubLocations) ListActive(ctx context.Context) ([]masterdata.Location, error) {
	return nil, nil
}

func (s *stubLocations) Save(ctx context.Context, location *masterdata.Location) error { return nil }

type testClock struct{ now time.Time }

func (c testClock) Now() time.Time { return c.now }

func occupancyRecord(locationID string, counterID *string, ts time.Time, occupancy int) telemetry.Record {
	return telemetry.Record{
		LocationID:       locationID,
		CounterID:        counterID,
		Timestamp:        ts,
		CurrentOccupancy: &occupancy,
		Capacity:         20,
	}
}

func newTestEngine(t *testing.T, store *stubStore) *Engine {
	t.Helper()
	locations := &stubLocations{locations: map[string]*masterdata.Location{
		"loc-1": {ID: "loc-1", TenantID: "tenant-a", Code: "CAF-01", Name: "Main Hall", Capacity: 20, Active: true},
	}}
	engine, err := NewEngine(store, locations, testClock{now: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestOccupancyTrend_HourBucketMean(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	store := &stubStore{records: []telemetry.Record{
		occupancyRecord("loc-1", nil, base.Add(5*time.Minute), 5),
		occupancyRecord("loc-1", nil, base.Add(20*time.Minute), 9),
		occupancyRecord("loc-1", nil, base.Add(40*time.Minute), 14),
	}}
	engine := newTestEngine(t, store)

	points, err := engine.OccupancyTrend(context.Background(), "loc-1", nil, base, base.Add(time.Hour), analytics.GranularityHourly)
	if err != nil {
		t.Fatalf("occupancy trend: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one bucket, got %d", len(points))
	}
	if points[0].Bucket != "09:00" {
		t.Fatalf("expected bucket 09:00, got %q", points[0].Bucket)
	}
	if points[0].SampleCount != 3 {
		t.Fatalf("expected 3 samples, got %d", points[0].SampleCount)
	}
	want := (5.0 + 9.0 + 14.0) / 3.0
	if math.Abs(points[0].MeanOccupancy-want) > 1e-9 {
		t.Fatalf("expected mean %v, got %v", want, points[0].MeanOccupancy)
	}
}

func TestOccupancyTrend_EmptyRangeIsValid(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(t, store)

	start := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	points, err := engine.OccupancyTrend(context.Background(), "loc-1", nil, start, start.Add(time.Hour), analytics.GranularityHourly)
	if err != nil {
		t.Fatalf("empty range must not error: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected empty result, got %d points", len(points))
	}
}

func TestOccupancyTrend_UnknownLocation(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(t, store)

	start := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	_, err := engine.OccupancyTrend(context.Background(), "loc-ghost", nil, start, start.Add(time.Hour), analytics.GranularityHourly)
	if !errors.Is(err, analytics.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestOccupancyTrend_InvalidRange(t *testing.T) {
	engine := newTestEngine(t, &stubStore{})
	start := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, err := engine.OccupancyTrend(context.Background(), "loc-1", nil, start, start, analytics.GranularityHourly)
	if !errors.Is(err, analytics.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	_, err = engine.OccupancyTrend(context.Background(), "loc-1", nil, start, start.Add(time.Hour), "YEARLY")
	if !errors.Is(err, analytics.ErrInvalidGranularity) {
		t.Fatalf("expected ErrInvalidGranularity, got %v", err)
	}
}

func TestCounterCongestionTrend_PeakPerCounter(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	ctrA := "ctr-a"
	ctrB := "ctr-b"
	store := &stubStore{records: []telemetry.Record{
		occupancyRecord("loc-1", &ctrA, base.Add(5*time.Minute), 5),
		occupancyRecord("loc-1", &ctrA, base.Add(20*time.Minute), 14),
		occupancyRecord("loc-1", &ctrA, base.Add(40*time.Minute), 9),
		occupancyRecord("loc-1", &ctrB, base.Add(10*time.Minute), 7),
	}}
	engine := newTestEngine(t, store)

	buckets, err := engine.CounterCongestionTrend(context.Background(), "loc-1", base, base.Add(time.Hour), analytics.GranularityHourly)
	if err != nil {
		t.Fatalf("congestion trend: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Bucket != "09:00" {
		t.Fatalf("expected single 09:00 bucket, got %+v", buckets)
	}
	counters := buckets[0].Counters
	if len(counters) != 2 {
		t.Fatalf("expected two counters, got %+v", counters)
	}
	// The bucket keeps the maximum, not the mean, and counters sort by id.
	if counters[0].CounterID != "ctr-a" || counters[0].PeakOccupancy != 14 {
		t.Fatalf("ctr-a peak mismatch: %+v", counters[0])
	}
	if counters[1].CounterID != "ctr-b" || counters[1].PeakOccupancy != 7 {
		t.Fatalf("ctr-b peak mismatch: %+v", counters[1])
	}
}

func TestCounterCongestionTrend_SiteLevelFallback(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	ctrA := "ctr-a"
	store := &stubStore{records: []telemetry.Record{
		// 09:00 has only site-level data; 10:00 has a counter record plus a
		// site-level record that must not leak into the bucket.
		occupancyRecord("loc-1", nil, base.Add(10*time.Minute), 42),
		occupancyRecord("loc-1", &ctrA, base.Add(70*time.Minute), 11),
		occupancyRecord("loc-1", nil, base.Add(75*time.Minute), 99),
	}}
	engine := newTestEngine(t, store)

	buckets, err := engine.CounterCongestionTrend(context.Background(), "loc-1", base, base.Add(2*time.Hour), analytics.GranularityHourly)
	if err != nil {
		t.Fatalf("congestion trend: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected two buckets, got %+v", buckets)
	}
	first := buckets[0]
	if first.Bucket != "09:00" || len(first.Counters) != 1 || first.Counters[0].CounterID != "site-level" || first.Counters[0].PeakOccupancy != 42 {
		t.Fatalf("site-level fallback mismatch: %+v", first)
	}
	second := buckets[1]
	if second.Bucket != "10:00" || len(second.Counters) != 1 || second.Counters[0].CounterID != "ctr-a" {
		t.Fatalf("counter bucket must exclude site-level when counters exist: %+v", second)
	}
}

func TestTotalServed_CounterScoped(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	ctrA := "ctr-a"
	store := &stubStore{records: []telemetry.Record{
		countRecord(&ctrA, base, 10),
		countRecord(&ctrA, base.Add(10*time.Minute), 15),
		countRecord(&ctrA, base.Add(20*time.Minute), 12),
		countRecord(&ctrA, base.Add(30*time.Minute), 20),
	}}
	for i := range store.records {
		store.records[i].LocationID = "loc-1"
	}
	engine := newTestEngine(t, store)

	total, err := engine.TotalServed(context.Background(), "loc-1", &ctrA, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("total served: %v", err)
	}
	if total != 13 {
		t.Fatalf("expected 13, got %d", total)
	}
}

func TestTotalServed_SiteWideSumsStreams(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	ctrA := "ctr-a"
	ctrB := "ctr-b"
	records := []telemetry.Record{
		countRecord(&ctrA, base, 100),
		countRecord(&ctrA, base.Add(10*time.Minute), 108),
		countRecord(&ctrB, base, 200),
		countRecord(&ctrB, base.Add(10*time.Minute), 205),
		countRecord(nil, base, 1000),
		countRecord(nil, base.Add(10*time.Minute), 1002),
	}
	for i := range records {
		records[i].LocationID = "loc-1"
	}
	engine := newTestEngine(t, &stubStore{records: records})

	total, err := engine.TotalServed(context.Background(), "loc-1", nil, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("total served: %v", err)
	}
	if total != 15 {
		t.Fatalf("expected 8+5+2=15, got %d", total)
	}
}

func TestTotalServed_StoreErrorWrapped(t *testing.T) {
	storeErr := errors.New("query timeout")
	engine := newTestEngine(t, &stubStore{err: storeErr})

	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	_, err := engine.TotalServed(context.Background(), "loc-1", nil, base, base.Add(time.Hour))
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
