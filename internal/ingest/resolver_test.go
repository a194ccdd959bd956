package ingest

import (
	"context"
	"errors"
	"testing"

	masterdata "canteen-cloud/internal/masterdata/domain"
)

type stubCounterRepo struct {
	byDevice map[string]*masterdata.Counter
	err      error
}

func (s *stubCounterRepo) Get(ctx context.Context, id string) (*masterdata.Counter, error) {
	return nil, nil
}

func (s *stubCounterRepo) GetByDeviceID(ctx context.Context, deviceID string) (*masterdata.Counter, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDevice[deviceID], nil
}

func (s *stubCounterRepo) ListByLocation(ctx context.Context, locationID string) ([]masterdata.Counter, error) {
	return nil, nil
}

func (s *stubCounterRepo) Save(ctx context.Context, counter *masterdata.Counter) error {
	return nil
}

type stubLocationRepo struct {
	byID   map[string]*masterdata.Location
	byCode map[string]*masterdata.Location
	active []masterdata.Location
	err    error
}

func (s *stubLocationRepo) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byID[id], nil
}

func (s *stubLocationRepo) GetByCode(ctx context.Context, code string) (*masterdata.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byCode[code], nil
}

func (s *stubLocationRepo) ListActive(ctx context.Context) ([]masterdata.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.active, nil
}

func (s *stubLocationRepo) Save(ctx context.Context, location *masterdata.Location) error {
	return nil
}

func testLocation(id string) *masterdata.Location {
	return &masterdata.Location{ID: id, TenantID: "tenant-a", Code: "CAF-" + id, Name: "Cafeteria " + id, Capacity: 200, Active: true}
}

func TestResolve_DeviceIDWins(t *testing.T) {
	location := testLocation("loc-1")
	counter := &masterdata.Counter{ID: "ctr-1", LocationID: "loc-1", DeviceID: "cam-07", Active: true}
	counters := &stubCounterRepo{byDevice: map[string]*masterdata.Counter{"cam-07": counter}}
	locations := &stubLocationRepo{
		byID:   map[string]*masterdata.Location{"loc-1": location},
		byCode: map[string]*masterdata.Location{"CAF-other": testLocation("loc-other")},
	}
	resolver, err := NewOwnerResolver(counters, locations, "", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	owner, err := resolver.Resolve(context.Background(), "cam-07", "CAF-other")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner.Counter == nil || owner.Counter.ID != "ctr-1" {
		t.Fatalf("expected counter attribution, got %+v", owner)
	}
	if owner.Location.ID != "loc-1" {
		t.Fatalf("expected counter's location, got %s", owner.Location.ID)
	}
}

func TestResolve_UnknownDeviceFallsToCode(t *testing.T) {
	location := testLocation("loc-2")
	counters := &stubCounterRepo{byDevice: map[string]*masterdata.Counter{}}
	locations := &stubLocationRepo{
		byID:   map[string]*masterdata.Location{},
		byCode: map[string]*masterdata.Location{"CAF-02": location},
	}
	resolver, err := NewOwnerResolver(counters, locations, "", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	owner, err := resolver.Resolve(context.Background(), "cam-ghost", "CAF-02")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner.Counter != nil {
		t.Fatalf("expected site-level attribution")
	}
	if owner.Location.ID != "loc-2" {
		t.Fatalf("expected loc-2, got %s", owner.Location.ID)
	}
}

func TestResolve_DefaultLocation(t *testing.T) {
	location := testLocation("loc-default")
	counters := &stubCounterRepo{byDevice: map[string]*masterdata.Counter{}}
	locations := &stubLocationRepo{
		byID:   map[string]*masterdata.Location{"loc-default": location},
		byCode: map[string]*masterdata.Location{},
	}
	resolver, err := NewOwnerResolver(counters, locations, "loc-default", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	owner, err := resolver.Resolve(context.Background(), "", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner.Location.ID != "loc-default" {
		t.Fatalf("expected default location, got %s", owner.Location.ID)
	}
}

func TestResolve_FirstActiveLocation(t *testing.T) {
	counters := &stubCounterRepo{byDevice: map[string]*masterdata.Counter{}}
	locations := &stubLocationRepo{
		byID:   map[string]*masterdata.Location{},
		byCode: map[string]*masterdata.Location{},
		active: []masterdata.Location{*testLocation("loc-a"), *testLocation("loc-b")},
	}
	resolver, err := NewOwnerResolver(counters, locations, "", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	owner, err := resolver.Resolve(context.Background(), "cam-unknown", "CAF-unknown")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if owner.Location.ID != "loc-a" {
		t.Fatalf("expected first active location, got %s", owner.Location.ID)
	}
}

func TestResolve_Exhausted(t *testing.T) {
	counters := &stubCounterRepo{byDevice: map[string]*masterdata.Counter{}}
	locations := &stubLocationRepo{
		byID:   map[string]*masterdata.Location{},
		byCode: map[string]*masterdata.Location{},
	}
	resolver, err := NewOwnerResolver(counters, locations, "loc-missing", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "cam-unknown", "CAF-unknown")
	if !errors.Is(err, ErrNoResolvableOwner) {
		t.Fatalf("expected ErrNoResolvableOwner, got %v", err)
	}
}

func TestResolve_RepoErrorPropagates(t *testing.T) {
	repoErr := errors.New("db down")
	counters := &stubCounterRepo{err: repoErr}
	locations := &stubLocationRepo{}
	resolver, err := NewOwnerResolver(counters, locations, "", nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "cam-07", "")
	if !errors.Is(err, repoErr) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}
