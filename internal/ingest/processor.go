package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"canteen-cloud/internal/eventing"
	"canteen-cloud/internal/observability/metrics"
	events "canteen-cloud/internal/telemetry/application/events"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

// Clock provides time for the processor.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Processor orchestrates resolution, normalization and persistence for each
// inbound telemetry event. Re-processing a duplicate delivery creates a
// duplicate record; the channel is at-least-once and records are append-only.
type Processor struct {
	resolver *OwnerResolver
	store    telemetry.RecordStore
	bus      eventing.EventBus
	clock    Clock
	logger   *log.Logger
}

// NewProcessor constructs a processor.
func NewProcessor(resolver *OwnerResolver, store telemetry.RecordStore, bus eventing.EventBus, clock Clock, logger *log.Logger) (*Processor, error) {
	if resolver == nil {
		return nil, errors.New("processor: nil resolver")
	}
	if store == nil {
		return nil, errors.New("processor: nil record store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		resolver: resolver,
		store:    store,
		bus:      bus,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Process handles one inbound event. Malformed payloads and unresolvable
// owners are dropped; a store failure is fatal for the event and propagates.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	start := time.Now()

	parsed, err := ParsePayload(payload)
	if err != nil {
		p.logger.Printf("ingest: dropping malformed payload: %v", err)
		metrics.IncIngestDropped("malformed")
		metrics.ObserveIngest("dropped", time.Since(start))
		return err
	}

	owner, err := p.resolver.Resolve(ctx, parsed.DeviceID, parsed.CafeteriaCode)
	if err != nil {
		if errors.Is(err, ErrNoResolvableOwner) {
			p.logger.Printf("ingest: dropping event, no resolvable owner (device=%q code=%q)", parsed.DeviceID, parsed.CafeteriaCode)
			metrics.IncIngestDropped("no_owner")
			metrics.ObserveIngest("dropped", time.Since(start))
			return err
		}
		metrics.ObserveIngest("error", time.Since(start))
		return err
	}

	record := BuildRecord(parsed, owner, p.clock.Now())
	if err := p.store.Save(ctx, &record); err != nil {
		metrics.ObserveIngest("error", time.Since(start))
		return fmt.Errorf("ingest: store save: %w", err)
	}

	p.publishRecorded(ctx, record)
	metrics.ObserveIngest("success", time.Since(start))
	return nil
}

// publishRecorded emits the post-commit event. Consumer failures are logged
// and swallowed; the record is already durable.
func (p *Processor) publishRecorded(ctx context.Context, record telemetry.Record) {
	if p.bus == nil {
		return
	}
	event := events.TelemetryRecorded{
		RecordID:   record.ID,
		LocationID: record.LocationID,
		OccurredAt: record.Timestamp,
	}
	if record.CounterID != nil {
		event.CounterID = *record.CounterID
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Printf("ingest: post-commit publish error: %v", err)
	}
}

// BuildRecord normalizes a parsed payload into a telemetry record attributed
// to the resolved owner. Classifications are computed here, once.
func BuildRecord(payload Payload, owner Owner, now time.Time) telemetry.Record {
	record := telemetry.Record{
		LocationID: owner.Location.ID,
		Timestamp:  payload.EventTime(now),
		Capacity:   owner.Location.EffectiveCapacity(),
	}
	if owner.Counter != nil {
		counterID := owner.Counter.ID
		record.CounterID = &counterID
	}

	if occupancy := payload.Occupancy.Ptr(); occupancy != nil && *occupancy >= 0 {
		record.CurrentOccupancy = occupancy
	}
	if inCount := payload.InCount.Ptr(); inCount != nil && *inCount >= 0 {
		record.InCount = inCount
	}

	record.AvgDwellTime = SecondsToMinutes(payload.AvgDwell.Ptr())
	record.MaxDwellTime = SecondsToMinutes(payload.MaxDwell.Ptr())
	record.EstimatedWaitTime = SecondsToMinutes(payload.EstimateWait.Ptr())
	record.ManualWaitTime = SecondsToMinutes(payload.WaitingTime.Ptr())

	record.OccupancyPercentage = OccupancyPercentage(record.CurrentOccupancy, record.Capacity)

	var representative *float64
	if wait, ok := record.RepresentativeWait(); ok {
		representative = &wait
	}
	record.QueueLength = EstimateQueueLength(representative, record.CurrentOccupancy)
	record.CongestionLevel = ClassifyCongestion(record.OccupancyPercentage)
	record.ServiceStatus = ClassifyServiceStatus(record.QueueLength)

	return record
}
