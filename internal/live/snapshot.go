package live

import (
	"context"
	"errors"
	"log"
	"time"

	"canteen-cloud/internal/observability/metrics"
	events "canteen-cloud/internal/telemetry/application/events"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

// CounterSnapshot is the freshest state of one counter (or of the site, under
// an empty counter id).
type CounterSnapshot struct {
	CounterID       string                    `json:"counterId,omitempty"`
	Occupancy       *int                      `json:"occupancy,omitempty"`
	OccupancyPct    float64                   `json:"occupancyPct"`
	QueueLength     int                       `json:"queueLength"`
	CongestionLevel telemetry.CongestionLevel `json:"congestionLevel"`
	ServiceStatus   telemetry.ServiceStatus   `json:"serviceStatus"`
	Timestamp       time.Time                 `json:"timestamp"`
}

// Snapshot is the per-location live payload pushed after each ingested event.
type Snapshot struct {
	LocationID string            `json:"locationId"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Counters   []CounterSnapshot `json:"counters"`
}

// Publisher pushes a snapshot to a location topic. Fire-and-forget; no
// acknowledgment is expected.
type Publisher interface {
	Publish(locationTopic string, snapshot Snapshot)
}

// RecordedConsumer rebuilds and broadcasts the location snapshot whenever a
// telemetry record commits. It runs post-commit on the in-process bus; every
// failure is logged and swallowed so broadcast problems never reach ingestion.
type RecordedConsumer struct {
	store     telemetry.RecordStore
	publisher Publisher
	logger    *log.Logger
}

// NewRecordedConsumer constructs a consumer.
func NewRecordedConsumer(store telemetry.RecordStore, publisher Publisher, logger *log.Logger) (*RecordedConsumer, error) {
	if store == nil {
		return nil, errors.New("live consumer: nil record store")
	}
	if publisher == nil {
		return nil, errors.New("live consumer: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RecordedConsumer{store: store, publisher: publisher, logger: logger}, nil
}

// Handle consumes a TelemetryRecorded event. Always returns nil.
func (c *RecordedConsumer) Handle(ctx context.Context, event any) error {
	recorded, ok := event.(events.TelemetryRecorded)
	if !ok {
		return nil
	}

	latest, err := c.store.FindLatestPerCounter(ctx, recorded.LocationID)
	if err != nil {
		c.logger.Printf("live: snapshot query error for location %s: %v", recorded.LocationID, err)
		metrics.IncBroadcast("error")
		return nil
	}

	snapshot := BuildSnapshot(recorded.LocationID, latest)
	c.publisher.Publish(recorded.LocationID, snapshot)
	metrics.IncBroadcast("success")
	return nil
}

// BuildSnapshot assembles the live payload from the freshest per-counter
// records.
func BuildSnapshot(locationID string, latest []telemetry.Record) Snapshot {
	snapshot := Snapshot{LocationID: locationID}
	for _, record := range latest {
		counter := CounterSnapshot{
			Occupancy:       record.CurrentOccupancy,
			OccupancyPct:    record.OccupancyPercentage,
			QueueLength:     record.QueueLength,
			CongestionLevel: record.CongestionLevel,
			ServiceStatus:   record.ServiceStatus,
			Timestamp:       record.Timestamp,
		}
		if record.CounterID != nil {
			counter.CounterID = *record.CounterID
		}
		snapshot.Counters = append(snapshot.Counters, counter)
		if record.Timestamp.After(snapshot.UpdatedAt) {
			snapshot.UpdatedAt = record.Timestamp
		}
	}
	return snapshot
}
