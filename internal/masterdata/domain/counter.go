package masterdata

import (
	"context"
	"errors"
	"time"
)

// Counter represents a food counter bound to a location.
type Counter struct {
	ID         string
	LocationID string
	DeviceID   string
	Name       string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks counter invariants.
func (c Counter) Validate() error {
	if c.ID == "" {
		return errors.New("counter: empty id")
	}
	if c.LocationID == "" {
		return errors.New("counter: empty location id")
	}
	if c.DeviceID == "" {
		return errors.New("counter: empty device id")
	}
	return nil
}

// CounterRepository manages counter persistence.
type CounterRepository interface {
	Get(ctx context.Context, id string) (*Counter, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Counter, error)
	ListByLocation(ctx context.Context, locationID string) ([]Counter, error)
	Save(ctx context.Context, counter *Counter) error
}
