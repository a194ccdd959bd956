package ingesthttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"canteen-cloud/internal/ingest"
	masterdata "canteen-cloud/internal/masterdata/domain"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

type stubCounterRepo struct {
	byDevice map[string]*masterdata.Counter
}

func (s *stubCounterRepo) Get(ctx context.Context, id string) (*masterdata.Counter, error) {
	return nil, nil
}

func (s *stubCounterRepo) GetByDeviceID(ctx context.Context, deviceID string) (*masterdata.Counter, error) {
	return s.byDevice[deviceID], nil
}

func (s *stubCounterRepo) ListByLocation(ctx context.Context, locationID string) ([]masterdata.Counter, error) {
	return nil, nil
}

func (s *stubCounterRepo) Save(ctx context.Context, counter *masterdata.Counter) error { return nil }

type stubLocationRepo struct {
	byID   map[string]*masterdata.Location
	byCode map[string]*masterdata.Location
}

func (s *stubLocationRepo) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	return s.byID[id], nil
}

func (s *stubLocationRepo) GetByCode(ctx context.Context, code string) (*masterdata.Location, error) {
	return s.byCode[code], nil
}

func (s *stubLocationRepo) ListActive(ctx context.Context) ([]masterdata.Location, error) {
	return nil, nil
}

func (s *stubLocationRepo) Save(ctx context.Context, location *masterdata.Location) error {
	return nil
}

type stubRecordStore struct {
	saved []telemetry.Record
}

func (s *stubRecordStore) Save(ctx context.Context, record *telemetry.Record) error {
	record.ID = "rec-1"
	s.saved = append(s.saved, *record)
	return nil
}

func (s *stubRecordStore) FindByOwnerAndRange(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]telemetry.Record, error) {
	return nil, nil
}

func (s *stubRecordStore) FindLatestPerCounter(ctx context.Context, locationID string) ([]telemetry.Record, error) {
	return nil, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestHandler(t *testing.T, store *stubRecordStore) *QueueStatusHandler {
	t.Helper()
	location := &masterdata.Location{ID: "loc-1", TenantID: "tenant-a", Code: "CAF-01", Name: "Main Hall", Capacity: 200, Active: true}
	resolver, err := ingest.NewOwnerResolver(
		&stubCounterRepo{byDevice: map[string]*masterdata.Counter{}},
		&stubLocationRepo{
			byID:   map[string]*masterdata.Location{"loc-1": location},
			byCode: map[string]*masterdata.Location{"CAF-01": location},
		},
		"",
		nil,
	)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	clock := fixedClock{now: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	handler, err := NewQueueStatusHandler(resolver, store, nil, clock, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestQueueStatus_Accepted(t *testing.T) {
	store := &stubRecordStore{}
	handler := newTestHandler(t, store)

	body := `{"cafeteriaCode":"CAF-01","queue_count":18,"wait_minutes":12.5}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/queue-status", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one saved record, got %d", len(store.saved))
	}
	record := store.saved[0]
	if record.QueueLength != 18 {
		t.Fatalf("queue length mismatch: %d", record.QueueLength)
	}
	if record.ManualWaitTime == nil || *record.ManualWaitTime != 12.5 {
		t.Fatalf("manual wait mismatch: %v", record.ManualWaitTime)
	}
	// Queue 18 is MEDIUM_WAIT; wait 12.5 minutes alone would be SHORT_WAIT.
	// The worse classification wins.
	if record.ServiceStatus != telemetry.StatusMediumWait {
		t.Fatalf("expected MEDIUM_WAIT, got %s", record.ServiceStatus)
	}
	// Without an occupancy reading, congestion tracks the observed queue.
	if record.CongestionLevel != telemetry.CongestionMedium {
		t.Fatalf("expected MEDIUM congestion for queue 18, got %s", record.CongestionLevel)
	}
}

func TestQueueStatus_CongestionFollowsQueue(t *testing.T) {
	cases := []struct {
		name string
		body string
		want telemetry.CongestionLevel
	}{
		{name: "short queue", body: `{"cafeteriaCode":"CAF-01","queue_count":3}`, want: telemetry.CongestionLow},
		{name: "long queue", body: `{"cafeteriaCode":"CAF-01","queue_count":30}`, want: telemetry.CongestionHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubRecordStore{}
			handler := newTestHandler(t, store)

			req := httptest.NewRequest(http.MethodPost, "/ingest/queue-status", strings.NewReader(tc.body))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			if store.saved[0].CongestionLevel != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, store.saved[0].CongestionLevel)
			}
		})
	}
}

func TestQueueStatus_WaitEscalates(t *testing.T) {
	store := &stubRecordStore{}
	handler := newTestHandler(t, store)

	body := `{"cafeteriaCode":"CAF-01","queue_count":2,"wait_minutes":55}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/queue-status", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if store.saved[0].ServiceStatus != telemetry.StatusLongWait {
		t.Fatalf("expected LONG_WAIT from the wait signal, got %s", store.saved[0].ServiceStatus)
	}
}

func TestQueueStatus_MissingQueueCount(t *testing.T) {
	handler := newTestHandler(t, &stubRecordStore{})

	req := httptest.NewRequest(http.MethodPost, "/ingest/queue-status", strings.NewReader(`{"cafeteriaCode":"CAF-01"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestQueueStatus_NoResolvableOwner(t *testing.T) {
	handler := newTestHandler(t, &stubRecordStore{})

	body := `{"cafeteriaCode":"CAF-unknown","queue_count":3}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/queue-status", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestQueueStatus_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, &stubRecordStore{})

	req := httptest.NewRequest(http.MethodGet, "/ingest/queue-status", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
