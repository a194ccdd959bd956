package masterdata

import (
	"context"
	"errors"
	"time"
)

// DefaultCapacity is assumed for locations provisioned without a seat count.
const DefaultCapacity = 728

// Location represents a cafeteria site in masterdata.
type Location struct {
	ID        string
	TenantID  string
	Code      string
	Name      string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks location invariants.
func (l Location) Validate() error {
	if l.ID == "" {
		return errors.New("location: empty id")
	}
	if l.TenantID == "" {
		return errors.New("location: empty tenant id")
	}
	if l.Name == "" {
		return errors.New("location: empty name")
	}
	return nil
}

// EffectiveCapacity returns the configured capacity, falling back to the default.
func (l Location) EffectiveCapacity() int {
	if l.Capacity > 0 {
		return l.Capacity
	}
	return DefaultCapacity
}

// LocationRepository manages location persistence.
type LocationRepository interface {
	Get(ctx context.Context, id string) (*Location, error)
	GetByCode(ctx context.Context, code string) (*Location, error)
	ListActive(ctx context.Context) ([]Location, error)
	Save(ctx context.Context, location *Location) error
}
