package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	analytics "canteen-cloud/internal/analytics/domain"
	masterdata "canteen-cloud/internal/masterdata/domain"
	"canteen-cloud/internal/observability/metrics"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

// siteLevelKey labels congestion-trend entries backed only by site-level
// records in a bucket.
const siteLevelKey = "site-level"

// Clock provides time for trailing-window queries.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Engine computes bucketed analytics views over persisted telemetry records.
// Every operation is read-only and a pure function of the record range; calls
// are safe concurrently with ingestion and with each other. An empty range
// yields a well-formed zero-valued view, distinguishable from a lookup error.
type Engine struct {
	store     telemetry.RecordStore
	locations masterdata.LocationRepository
	clock     Clock
	logger    *log.Logger
}

// NewEngine constructs an engine.
func NewEngine(store telemetry.RecordStore, locations masterdata.LocationRepository, clock Clock, logger *log.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("analytics engine: nil record store")
	}
	if locations == nil {
		return nil, errors.New("analytics engine: nil location repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: store, locations: locations, clock: clock, logger: logger}, nil
}

// TrendPoint is one bucket of the occupancy trend.
type TrendPoint struct {
	Bucket        string  `json:"bucket"`
	SampleCount   int     `json:"sampleCount"`
	MeanOccupancy float64 `json:"meanOccupancy"`
}

// OccupancyTrend returns the per-bucket mean of current occupancy. Counter and
// site-level records mix unless counterID narrows the query.
func (e *Engine) OccupancyTrend(ctx context.Context, locationID string, counterID *string, start, end time.Time, granularity analytics.Granularity) ([]TrendPoint, error) {
	began := time.Now()
	points, err := e.occupancyTrend(ctx, locationID, counterID, start, end, granularity)
	metrics.ObserveAggregation("occupancy_trend", resultLabel(err), time.Since(began))
	return points, err
}

func (e *Engine) occupancyTrend(ctx context.Context, locationID string, counterID *string, start, end time.Time, granularity analytics.Granularity) ([]TrendPoint, error) {
	records, err := e.loadRange(ctx, locationID, counterID, start, end, granularity)
	if err != nil {
		return nil, err
	}

	sums := make(map[analytics.BucketKey]float64)
	counts := make(map[analytics.BucketKey]int)
	for _, record := range records {
		if record.CurrentOccupancy == nil {
			continue
		}
		key := analytics.BucketKeyFor(granularity, record.Timestamp)
		sums[key] += float64(*record.CurrentOccupancy)
		counts[key]++
	}

	points := make([]TrendPoint, 0, len(counts))
	for _, key := range sortedKeys(counts) {
		points = append(points, TrendPoint{
			Bucket:        key.Label,
			SampleCount:   counts[key],
			MeanOccupancy: sums[key] / float64(counts[key]),
		})
	}
	return points, nil
}

// CounterPeak is the worst observed occupancy for one counter in a bucket.
type CounterPeak struct {
	CounterID     string `json:"counterId"`
	PeakOccupancy int    `json:"peakOccupancy"`
}

// CongestionBucket is one bucket of the counter congestion trend.
type CongestionBucket struct {
	Bucket   string        `json:"bucket"`
	Counters []CounterPeak `json:"counters"`
}

// CounterCongestionTrend returns per-bucket, per-counter peak occupancy. The
// maximum is deliberate: worst-case congestion must surface, not smooth away.
// Site-level occupancy fills a bucket under the "site-level" key only when no
// counter record landed in it.
func (e *Engine) CounterCongestionTrend(ctx context.Context, locationID string, start, end time.Time, granularity analytics.Granularity) ([]CongestionBucket, error) {
	began := time.Now()
	buckets, err := e.counterCongestionTrend(ctx, locationID, start, end, granularity)
	metrics.ObserveAggregation("congestion_trend", resultLabel(err), time.Since(began))
	return buckets, err
}

func (e *Engine) counterCongestionTrend(ctx context.Context, locationID string, start, end time.Time, granularity analytics.Granularity) ([]CongestionBucket, error) {
	records, err := e.loadRange(ctx, locationID, nil, start, end, granularity)
	if err != nil {
		return nil, err
	}

	counterPeaks := make(map[analytics.BucketKey]map[string]int)
	sitePeaks := make(map[analytics.BucketKey]int)
	siteSeen := make(map[analytics.BucketKey]bool)
	for _, record := range records {
		if record.CurrentOccupancy == nil {
			continue
		}
		key := analytics.BucketKeyFor(granularity, record.Timestamp)
		occupancy := *record.CurrentOccupancy
		if record.CounterID == nil {
			if !siteSeen[key] || occupancy > sitePeaks[key] {
				sitePeaks[key] = occupancy
			}
			siteSeen[key] = true
			continue
		}
		peaks := counterPeaks[key]
		if peaks == nil {
			peaks = make(map[string]int)
			counterPeaks[key] = peaks
		}
		if current, ok := peaks[*record.CounterID]; !ok || occupancy > current {
			peaks[*record.CounterID] = occupancy
		}
	}

	keySet := make(map[analytics.BucketKey]struct{})
	for key := range counterPeaks {
		keySet[key] = struct{}{}
	}
	for key := range siteSeen {
		keySet[key] = struct{}{}
	}

	keys := make([]analytics.BucketKey, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	analytics.SortKeys(keys)

	buckets := make([]CongestionBucket, 0, len(keys))
	for _, key := range keys {
		bucket := CongestionBucket{Bucket: key.Label}
		if peaks := counterPeaks[key]; len(peaks) > 0 {
			counterIDs := make([]string, 0, len(peaks))
			for counterID := range peaks {
				counterIDs = append(counterIDs, counterID)
			}
			sort.Strings(counterIDs)
			for _, counterID := range counterIDs {
				bucket.Counters = append(bucket.Counters, CounterPeak{CounterID: counterID, PeakOccupancy: peaks[counterID]})
			}
		} else if siteSeen[key] {
			bucket.Counters = append(bucket.Counters, CounterPeak{CounterID: siteLevelKey, PeakOccupancy: sitePeaks[key]})
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// TotalServed reconstructs the visitor count over the window from the
// cumulative entry counter.
func (e *Engine) TotalServed(ctx context.Context, locationID string, counterID *string, start, end time.Time) (int, error) {
	began := time.Now()
	total, err := e.totalServed(ctx, locationID, counterID, start, end)
	metrics.ObserveAggregation("total_served", resultLabel(err), time.Since(began))
	return total, err
}

func (e *Engine) totalServed(ctx context.Context, locationID string, counterID *string, start, end time.Time) (int, error) {
	records, err := e.loadRange(ctx, locationID, counterID, start, end, analytics.GranularityDaily)
	if err != nil {
		return 0, err
	}
	if counterID != nil {
		return reconstructTotalServed(records), nil
	}
	// Site-wide total: per-counter reconstruction plus the site-level stream,
	// each walked independently so one device's reset cannot cancel another's
	// increments.
	return reconstructPerCounter(records) + reconstructTotalServed(siteLevelOnly(records)), nil
}

func (e *Engine) loadRange(ctx context.Context, locationID string, counterID *string, start, end time.Time, granularity analytics.Granularity) ([]telemetry.Record, error) {
	if !granularity.IsValid() {
		return nil, analytics.ErrInvalidGranularity
	}
	if locationID == "" || start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, analytics.ErrInvalidRange
	}

	location, err := e.locations.Get(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("analytics engine: location lookup: %w", err)
	}
	if location == nil {
		return nil, analytics.ErrLocationNotFound
	}

	records, err := e.store.FindByOwnerAndRange(ctx, locationID, counterID, start, end)
	if err != nil {
		return nil, fmt.Errorf("analytics engine: record query: %w", err)
	}
	return records, nil
}

func sortedKeys[V any](m map[analytics.BucketKey]V) []analytics.BucketKey {
	keys := make([]analytics.BucketKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	analytics.SortKeys(keys)
	return keys
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
