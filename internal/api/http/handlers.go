package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"canteen-cloud/internal/analytics/application"
	analytics "canteen-cloud/internal/analytics/domain"
	"canteen-cloud/internal/auth"
)

const timeLayout = time.RFC3339

// Engine is the analytics surface the handlers query.
type Engine interface {
	OccupancyTrend(ctx context.Context, locationID string, counterID *string, start, end time.Time, granularity analytics.Granularity) ([]application.TrendPoint, error)
	CounterCongestionTrend(ctx context.Context, locationID string, start, end time.Time, granularity analytics.Granularity) ([]application.CongestionBucket, error)
	TotalServed(ctx context.Context, locationID string, counterID *string, start, end time.Time) (int, error)
	FootfallComparison(ctx context.Context, locationID string, start, end time.Time) ([]application.FootfallHour, error)
	PeakHours(ctx context.Context, locationID string, asOf time.Time) ([]application.PeakSlot, error)
	DwellTimeDistribution(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]application.DwellBucket, error)
}

// TenantChecker guards cross-tenant location access.
type TenantChecker interface {
	EnsureLocationTenant(ctx context.Context, tenantID, locationID string) error
}

type rangeQuery struct {
	locationID  string
	counterID   *string
	from        time.Time
	to          time.Time
	granularity analytics.Granularity
}

// OccupancyTrendHandler serves occupancy trend queries.
type OccupancyTrendHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewOccupancyTrendHandler constructs an OccupancyTrendHandler.
func NewOccupancyTrendHandler(engine Engine, checker TenantChecker) *OccupancyTrendHandler {
	return &OccupancyTrendHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/analytics/occupancy-trend.
func (h *OccupancyTrendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, ok := parseRangeQuery(w, r, h.checker, true)
	if !ok {
		return
	}
	points, err := h.engine.OccupancyTrend(r.Context(), query.locationID, query.counterID, query.from, query.to, query.granularity)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, points)
}

// CongestionTrendHandler serves per-counter congestion trend queries.
type CongestionTrendHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewCongestionTrendHandler constructs a CongestionTrendHandler.
func NewCongestionTrendHandler(engine Engine, checker TenantChecker) *CongestionTrendHandler {
	return &CongestionTrendHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/analytics/congestion-trend.
func (h *CongestionTrendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, ok := parseRangeQuery(w, r, h.checker, true)
	if !ok {
		return
	}
	buckets, err := h.engine.CounterCongestionTrend(r.Context(), query.locationID, query.from, query.to, query.granularity)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, buckets)
}

// TotalServedHandler serves footfall total queries.
type TotalServedHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewTotalServedHandler constructs a TotalServedHandler.
func NewTotalServedHandler(engine Engine, checker TenantChecker) *TotalServedHandler {
	return &TotalServedHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/analytics/total-served.
func (h *TotalServedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, ok := parseRangeQuery(w, r, h.checker, false)
	if !ok {
		return
	}
	total, err := h.engine.TotalServed(r.Context(), query.locationID, query.counterID, query.from, query.to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]int{"totalServed": total})
}

// FootfallHandler serves site-versus-counter footfall comparisons.
type FootfallHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewFootfallHandler constructs a FootfallHandler.
func NewFootfallHandler(engine Engine, checker TenantChecker) *FootfallHandler {
	return &FootfallHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/analytics/footfall.
func (h *FootfallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, ok := parseRangeQuery(w, r, h.checker, false)
	if !ok {
		return
	}
	hours, err := h.engine.FootfallComparison(r.Context(), query.locationID, query.from, query.to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, hours)
}

// PeakHoursHandler serves trailing-week peak hour queries.
type PeakHoursHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewPeakHoursHandler constructs a PeakHoursHandler.
func NewPeakHoursHandler(engine Engine, checker TenantChecker) *PeakHoursHandler {
	return &PeakHoursHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/analytics/peak-hours.
func (h *PeakHoursHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	locationID, ok := requireLocation(w, r, h.checker)
	if !ok {
		return
	}
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			http.Error(w, "as_of must be RFC3339", http.StatusBadRequest)
			return
		}
		asOf = parsed.UTC()
	}
	slots, err := h.engine.PeakHours(r.Context(), locationID, asOf)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, slots)
}

// DwellDistributionHandler serves dwell time histogram queries.
type DwellDistributionHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewDwellDistributionHandler constructs a DwellDistributionHandler.
func NewDwellDistributionHandler(engine Engine, checker TenantChecker) *DwellDistributionHandler {
	return &DwellDistributionHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/analytics/dwell-distribution.
func (h *DwellDistributionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, ok := parseRangeQuery(w, r, h.checker, false)
	if !ok {
		return
	}
	buckets, err := h.engine.DwellTimeDistribution(r.Context(), query.locationID, query.counterID, query.from, query.to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, buckets)
}

// ExportTrendCSVHandler serves occupancy trend CSV exports.
type ExportTrendCSVHandler struct {
	engine  Engine
	checker TenantChecker
}

// NewExportTrendCSVHandler constructs an ExportTrendCSVHandler.
func NewExportTrendCSVHandler(engine Engine, checker TenantChecker) *ExportTrendCSVHandler {
	return &ExportTrendCSVHandler{engine: engine, checker: checker}
}

// ServeHTTP handles GET /api/v1/exports/occupancy-trend.csv.
func (h *ExportTrendCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, ok := parseRangeQuery(w, r, h.checker, true)
	if !ok {
		return
	}
	points, err := h.engine.OccupancyTrend(r.Context(), query.locationID, query.counterID, query.from, query.to, query.granularity)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"bucket", "sample_count", "mean_occupancy"})
	for _, point := range points {
		_ = writer.Write([]string{
			point.Bucket,
			strconv.Itoa(point.SampleCount),
			strconv.FormatFloat(point.MeanOccupancy, 'f', 2, 64),
		})
	}
	writer.Flush()
}

func parseRangeQuery(w http.ResponseWriter, r *http.Request, checker TenantChecker, needGranularity bool) (rangeQuery, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return rangeQuery{}, false
	}
	locationID, ok := requireLocation(w, r, checker)
	if !ok {
		return rangeQuery{}, false
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return rangeQuery{}, false
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return rangeQuery{}, false
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return rangeQuery{}, false
	}

	query := rangeQuery{locationID: locationID, from: from, to: to, granularity: analytics.GranularityHourly}
	if counterID := r.URL.Query().Get("counter_id"); counterID != "" {
		query.counterID = &counterID
	}
	if needGranularity {
		if raw := r.URL.Query().Get("granularity"); raw != "" {
			granularity, err := analytics.ParseGranularity(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return rangeQuery{}, false
			}
			query.granularity = granularity
		}
	}
	return query, true
}

func requireLocation(w http.ResponseWriter, r *http.Request, checker TenantChecker) (string, bool) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id is required", http.StatusBadRequest)
		return "", false
	}
	if checker != nil {
		tenantID := auth.TenantIDFromContext(r.Context())
		if err := checker.EnsureLocationTenant(r.Context(), tenantID, locationID); err != nil {
			switch {
			case errors.Is(err, auth.ErrTenantMismatch):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, auth.ErrNotFound):
				http.Error(w, "location not found", http.StatusNotFound)
			default:
				http.Error(w, "lookup location error", http.StatusInternalServerError)
			}
			return "", false
		}
	}
	return locationID, true
}

func parseTimeQuery(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339", name)
	}
	return parsed.UTC(), nil
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrLocationNotFound):
		http.Error(w, "location not found", http.StatusNotFound)
	case errors.Is(err, analytics.ErrInvalidGranularity), errors.Is(err, analytics.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "query analytics error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
