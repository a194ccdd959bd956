package reports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	analyticsapp "canteen-cloud/internal/analytics/application"
	analytics "canteen-cloud/internal/analytics/domain"
	masterdata "canteen-cloud/internal/masterdata/domain"
	"canteen-cloud/internal/observability/metrics"
)

// Cadence is the report interval.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// window returns the trailing aggregation window for the cadence.
func (c Cadence) window() time.Duration {
	if c == CadenceWeekly {
		return 168 * time.Hour
	}
	return 24 * time.Hour
}

func (c Cadence) granularity() analytics.Granularity {
	if c == CadenceWeekly {
		return analytics.GranularityWeekly
	}
	return analytics.GranularityDaily
}

// Report is the assembled per-location result handed to formatters and senders.
type Report struct {
	LocationID      string
	LocationName    string
	Cadence         Cadence
	PeriodStart     time.Time
	PeriodEnd       time.Time
	TotalServed     int
	OccupancyTrend  []analyticsapp.TrendPoint
	CongestionTrend []analyticsapp.CongestionBucket
	PeakHours       []analyticsapp.PeakSlot
	DwellHistogram  []analyticsapp.DwellBucket
	Attachments     []Attachment
}

// Sender delivers an assembled report. HTML email composition lives behind
// this interface, outside the core.
type Sender interface {
	Send(ctx context.Context, report Report) error
}

// Driver periodically assembles reports for every active location. One
// location's failure is logged and skipped; the batch continues.
type Driver struct {
	engine     *analyticsapp.Engine
	locations  masterdata.LocationRepository
	sender     Sender
	formatters []Formatter
	clock      analyticsapp.Clock
	logger     *log.Logger
}

// NewDriver constructs a driver. Each formatter's output is attached to the
// report before delivery.
func NewDriver(engine *analyticsapp.Engine, locations masterdata.LocationRepository, sender Sender, clock analyticsapp.Clock, logger *log.Logger, formatters ...Formatter) (*Driver, error) {
	if engine == nil {
		return nil, errors.New("report driver: nil engine")
	}
	if locations == nil {
		return nil, errors.New("report driver: nil location repository")
	}
	if clock == nil {
		clock = analyticsapp.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{engine: engine, locations: locations, sender: sender, formatters: formatters, clock: clock, logger: logger}, nil
}

// RunBatch builds and delivers one report per active location.
func (d *Driver) RunBatch(ctx context.Context, cadence Cadence) {
	locations, err := d.locations.ListActive(ctx)
	if err != nil {
		d.logger.Printf("reports: active location query error: %v", err)
		metrics.IncReportRun(string(cadence), "error")
		return
	}

	for _, location := range locations {
		if err := d.runOne(ctx, cadence, location); err != nil {
			d.logger.Printf("reports: %s report for location %s failed: %v", cadence, location.ID, err)
			metrics.IncReportRun(string(cadence), "error")
			continue
		}
		metrics.IncReportRun(string(cadence), "success")
	}
}

func (d *Driver) runOne(ctx context.Context, cadence Cadence, location masterdata.Location) error {
	report, err := d.Build(ctx, cadence, location)
	if err != nil {
		return err
	}
	for _, formatter := range d.formatters {
		attachment, err := formatter.Format(report)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		report.Attachments = append(report.Attachments, attachment)
	}
	if d.sender == nil {
		return nil
	}
	if err := d.sender.Send(ctx, report); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Build assembles a report for one location over the cadence window.
func (d *Driver) Build(ctx context.Context, cadence Cadence, location masterdata.Location) (Report, error) {
	end := d.clock.Now()
	start := end.Add(-cadence.window())

	report := Report{
		LocationID:   location.ID,
		LocationName: location.Name,
		Cadence:      cadence,
		PeriodStart:  start,
		PeriodEnd:    end,
	}

	granularity := cadence.granularity()
	trend, err := d.engine.OccupancyTrend(ctx, location.ID, nil, start, end, granularity)
	if err != nil {
		return Report{}, fmt.Errorf("occupancy trend: %w", err)
	}
	report.OccupancyTrend = trend

	congestion, err := d.engine.CounterCongestionTrend(ctx, location.ID, start, end, granularity)
	if err != nil {
		return Report{}, fmt.Errorf("congestion trend: %w", err)
	}
	report.CongestionTrend = congestion

	peaks, err := d.engine.PeakHours(ctx, location.ID, end)
	if err != nil {
		return Report{}, fmt.Errorf("peak hours: %w", err)
	}
	report.PeakHours = peaks

	dwell, err := d.engine.DwellTimeDistribution(ctx, location.ID, nil, start, end)
	if err != nil {
		return Report{}, fmt.Errorf("dwell distribution: %w", err)
	}
	report.DwellHistogram = dwell

	served, err := d.engine.TotalServed(ctx, location.ID, nil, start, end)
	if err != nil {
		return Report{}, fmt.Errorf("total served: %w", err)
	}
	report.TotalServed = served

	return report, nil
}
