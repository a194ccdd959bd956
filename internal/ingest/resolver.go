package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	masterdata "canteen-cloud/internal/masterdata/domain"
)

// Owner is the (location, counter?) pair a telemetry record is attributed to.
// Counter is nil for site-level attribution.
type Owner struct {
	Location masterdata.Location
	Counter  *masterdata.Counter
}

// OwnerResolver maps an inbound event to its owning counter or location.
//
// Resolution order, first match wins:
//  1. explicit device id resolving to a registered counter (and its location)
//  2. explicit cafeteria code resolving to a location (site-level)
//  3. the configured default location for the ingestion channel
//  4. the first currently active location
//
// A reference that is present but does not resolve logs a diagnostic and falls
// through; only exhausting every step fails the event.
type OwnerResolver struct {
	counters          masterdata.CounterRepository
	locations         masterdata.LocationRepository
	defaultLocationID string
	logger            *log.Logger
}

// NewOwnerResolver constructs a resolver. defaultLocationID may be empty.
func NewOwnerResolver(counters masterdata.CounterRepository, locations masterdata.LocationRepository, defaultLocationID string, logger *log.Logger) (*OwnerResolver, error) {
	if counters == nil {
		return nil, errors.New("resolver: nil counter repository")
	}
	if locations == nil {
		return nil, errors.New("resolver: nil location repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OwnerResolver{
		counters:          counters,
		locations:         locations,
		defaultLocationID: defaultLocationID,
		logger:            logger,
	}, nil
}

// Resolve walks the fallback chain for the given references.
func (r *OwnerResolver) Resolve(ctx context.Context, deviceID, cafeteriaCode string) (Owner, error) {
	if deviceID != "" {
		counter, err := r.counters.GetByDeviceID(ctx, deviceID)
		if err != nil {
			return Owner{}, fmt.Errorf("resolver: counter lookup: %w", err)
		}
		if counter != nil {
			location, err := r.locations.Get(ctx, counter.LocationID)
			if err != nil {
				return Owner{}, fmt.Errorf("resolver: counter location lookup: %w", err)
			}
			if location != nil {
				return Owner{Location: *location, Counter: counter}, nil
			}
			r.logger.Printf("resolver: counter %s references unknown location %s", counter.ID, counter.LocationID)
		} else {
			r.logger.Printf("resolver: unregistered device id %q, falling back", deviceID)
		}
	}

	if cafeteriaCode != "" {
		location, err := r.locations.GetByCode(ctx, cafeteriaCode)
		if err != nil {
			return Owner{}, fmt.Errorf("resolver: location lookup: %w", err)
		}
		if location != nil {
			return Owner{Location: *location}, nil
		}
		r.logger.Printf("resolver: unknown cafeteria code %q, falling back", cafeteriaCode)
	}

	if r.defaultLocationID != "" {
		location, err := r.locations.Get(ctx, r.defaultLocationID)
		if err != nil {
			return Owner{}, fmt.Errorf("resolver: default location lookup: %w", err)
		}
		if location != nil {
			return Owner{Location: *location}, nil
		}
		r.logger.Printf("resolver: configured default location %q not found", r.defaultLocationID)
	}

	active, err := r.locations.ListActive(ctx)
	if err != nil {
		return Owner{}, fmt.Errorf("resolver: active location lookup: %w", err)
	}
	if len(active) > 0 {
		return Owner{Location: active[0]}, nil
	}

	return Owner{}, ErrNoResolvableOwner
}
