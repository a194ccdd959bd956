package telemetry

import (
	"context"
	"errors"
	"time"
)

// CongestionLevel classifies site or counter load from occupancy percentage.
type CongestionLevel string

const (
	CongestionLow    CongestionLevel = "LOW"
	CongestionMedium CongestionLevel = "MEDIUM"
	CongestionHigh   CongestionLevel = "HIGH"
)

// ServiceStatus classifies expected wait from the queue length estimate.
type ServiceStatus string

const (
	StatusReadyToServe ServiceStatus = "READY_TO_SERVE"
	StatusShortWait    ServiceStatus = "SHORT_WAIT"
	StatusMediumWait   ServiceStatus = "MEDIUM_WAIT"
	StatusLongWait     ServiceStatus = "LONG_WAIT"
)

// Record is one normalized telemetry observation. Records are immutable once
// persisted; classifications are computed at creation and never recomputed.
type Record struct {
	ID         string
	LocationID string
	// CounterID is nil for site-level records.
	CounterID *string
	Timestamp time.Time

	CurrentOccupancy    *int
	Capacity            int
	OccupancyPercentage float64

	// InCount is a cumulative, monotonically non-decreasing entry counter that
	// may reset on device restart.
	InCount *int

	// Duration fields are stored in minutes.
	AvgDwellTime      *float64
	MaxDwellTime      *float64
	EstimatedWaitTime *float64
	ManualWaitTime    *float64

	QueueLength     int
	CongestionLevel CongestionLevel
	ServiceStatus   ServiceStatus
}

// Validate checks record invariants prior to persistence.
func (r Record) Validate() error {
	if r.LocationID == "" {
		return errors.New("telemetry record: empty location id")
	}
	if r.CounterID != nil && *r.CounterID == "" {
		return errors.New("telemetry record: empty counter id")
	}
	if r.Timestamp.IsZero() {
		return errors.New("telemetry record: zero timestamp")
	}
	if r.CurrentOccupancy != nil && *r.CurrentOccupancy < 0 {
		return errors.New("telemetry record: negative occupancy")
	}
	if r.InCount != nil && *r.InCount < 0 {
		return errors.New("telemetry record: negative in-count")
	}
	return nil
}

// IsSiteLevel reports whether the record is attributed to the location only.
func (r Record) IsSiteLevel() bool { return r.CounterID == nil }

// RepresentativeWait returns the single authoritative wait duration in minutes,
// chosen by the fixed coalesce priority: average dwell time, then estimated wait,
// then manually entered wait. Only strictly positive values are considered.
func (r Record) RepresentativeWait() (float64, bool) {
	for _, candidate := range []*float64{r.AvgDwellTime, r.EstimatedWaitTime, r.ManualWaitTime} {
		if candidate != nil && *candidate > 0 {
			return *candidate, true
		}
	}
	return 0, false
}

// RecordStore persists and queries telemetry records. Save assigns the record ID
// and runs in a single transaction; stored records are never updated or deleted
// by the ingestion path.
type RecordStore interface {
	Save(ctx context.Context, record *Record) error
	// FindByOwnerAndRange returns records for the location within [start, end),
	// ordered by timestamp ascending. A non-nil counterID narrows the query to
	// that counter's records.
	FindByOwnerAndRange(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]Record, error)
	// FindLatestPerCounter returns the freshest record per counter for a
	// location, plus the freshest site-level record if one exists.
	FindLatestPerCounter(ctx context.Context, locationID string) ([]Record, error)
}
