package ingesthttp

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"canteen-cloud/internal/eventing"
	"canteen-cloud/internal/ingest"
	"canteen-cloud/internal/observability/metrics"
	events "canteen-cloud/internal/telemetry/application/events"
	telemetry "canteen-cloud/internal/telemetry/domain"
)

// QueueStatusHandler is the lightweight ingestion path: staff tablets and
// simple sensors POST an observed queue count and wait time instead of the
// full telemetry payload. Classification uses the combined queue-and-wait
// scheme.
type QueueStatusHandler struct {
	resolver *ingest.OwnerResolver
	store    telemetry.RecordStore
	bus      eventing.EventBus
	clock    ingest.Clock
	logger   *log.Logger
}

// NewQueueStatusHandler constructs the handler.
func NewQueueStatusHandler(resolver *ingest.OwnerResolver, store telemetry.RecordStore, bus eventing.EventBus, clock ingest.Clock, logger *log.Logger) (*QueueStatusHandler, error) {
	if resolver == nil {
		return nil, errors.New("queue status handler: nil resolver")
	}
	if store == nil {
		return nil, errors.New("queue status handler: nil record store")
	}
	if clock == nil {
		clock = ingest.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QueueStatusHandler{resolver: resolver, store: store, bus: bus, clock: clock, logger: logger}, nil
}

type queueStatusRequest struct {
	DeviceID      string   `json:"deviceId"`
	CafeteriaCode string   `json:"cafeteriaCode"`
	QueueCount    *int     `json:"queue_count"`
	WaitMinutes   *float64 `json:"wait_minutes"`
	Timestamp     string   `json:"timestamp"`
}

// ServeHTTP handles POST /ingest/queue-status.
func (h *QueueStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("queue status: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req queueStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("queue status: decode error: %v", err)
		metrics.IncIngestDropped("malformed")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.QueueCount == nil || *req.QueueCount < 0 {
		http.Error(w, "queue_count is required", http.StatusBadRequest)
		return
	}

	owner, err := h.resolver.Resolve(r.Context(), req.DeviceID, req.CafeteriaCode)
	if err != nil {
		if errors.Is(err, ingest.ErrNoResolvableOwner) {
			h.logger.Printf("queue status: dropping event, no resolvable owner (device=%q code=%q)", req.DeviceID, req.CafeteriaCode)
			metrics.IncIngestDropped("no_owner")
			http.Error(w, "no resolvable owner", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "owner lookup error", http.StatusInternalServerError)
		return
	}

	record := h.buildRecord(req, owner)
	if err := h.store.Save(r.Context(), &record); err != nil {
		h.logger.Printf("queue status: save error: %v", err)
		http.Error(w, "save error", http.StatusInternalServerError)
		return
	}

	if h.bus != nil {
		event := events.TelemetryRecorded{
			RecordID:   record.ID,
			LocationID: record.LocationID,
			OccurredAt: record.Timestamp,
		}
		if record.CounterID != nil {
			event.CounterID = *record.CounterID
		}
		if err := h.bus.Publish(r.Context(), event); err != nil {
			h.logger.Printf("queue status: post-commit publish error: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": record.ID, "serviceStatus": record.ServiceStatus})
}

func (h *QueueStatusHandler) buildRecord(req queueStatusRequest, owner ingest.Owner) telemetry.Record {
	now := h.clock.Now()
	timestamp := now
	if req.Timestamp != "" {
		payload := ingest.Payload{Timestamp: req.Timestamp}
		timestamp = payload.EventTime(now)
	}

	record := telemetry.Record{
		LocationID:  owner.Location.ID,
		Timestamp:   timestamp,
		Capacity:    owner.Location.EffectiveCapacity(),
		QueueLength: *req.QueueCount,
	}
	if owner.Counter != nil {
		counterID := owner.Counter.ID
		record.CounterID = &counterID
	}

	wait := 0.0
	if req.WaitMinutes != nil && *req.WaitMinutes > 0 {
		wait = *req.WaitMinutes
		record.ManualWaitTime = req.WaitMinutes
	}
	// No occupancy reading on this path; congestion follows the observed queue.
	record.CongestionLevel = ingest.ClassifyCongestionFromQueue(*req.QueueCount)
	record.ServiceStatus = ingest.ClassifyServiceStatusCombined(*req.QueueCount, wait)
	return record
}
