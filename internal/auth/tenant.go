package auth

import (
	"context"
	"errors"

	masterdata "canteen-cloud/internal/masterdata/domain"
)

var (
	// ErrTenantMismatch indicates the resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates the resource was not found.
	ErrNotFound = errors.New("resource not found")
)

// LocationChecker validates location tenant ownership.
type LocationChecker struct {
	locations masterdata.LocationRepository
}

// NewLocationChecker constructs a LocationChecker.
func NewLocationChecker(locations masterdata.LocationRepository) *LocationChecker {
	if locations == nil {
		return nil
	}
	return &LocationChecker{locations: locations}
}

// EnsureLocationTenant verifies a location belongs to the tenant.
func (c *LocationChecker) EnsureLocationTenant(ctx context.Context, tenantID, locationID string) error {
	if c == nil || c.locations == nil {
		return nil
	}
	if tenantID == "" || locationID == "" {
		return nil
	}
	location, err := c.locations.Get(ctx, locationID)
	if err != nil {
		return err
	}
	if location == nil {
		return ErrNotFound
	}
	if location.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
