package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	telemetry "canteen-cloud/internal/telemetry/domain"
)

const defaultRecordsTable = "telemetry_records"

// RecordStore is a Postgres implementation of the telemetry record store.
type RecordStore struct {
	db    *sql.DB
	table string
}

// NewRecordStore constructs a store with the default table name.
func NewRecordStore(db *sql.DB, opts ...StoreOption) *RecordStore {
	store := &RecordStore{db: db, table: defaultRecordsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// StoreOption configures the record store.
type StoreOption func(*RecordStore)

// WithRecordsTable overrides the default table name.
func WithRecordsTable(table string) StoreOption {
	return func(store *RecordStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Save inserts a record inside a single transaction and assigns its ID.
func (s *RecordStore) Save(ctx context.Context, record *telemetry.Record) error {
	if s == nil || s.db == nil {
		return errors.New("record store: nil db")
	}
	if record == nil {
		return errors.New("record store: nil record")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	location_id,
	counter_id,
	ts,
	current_occupancy,
	capacity,
	occupancy_percentage,
	in_count,
	avg_dwell_time,
	max_dwell_time,
	estimated_wait_time,
	manual_wait_time,
	queue_length,
	congestion_level,
	service_status
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)`, s.table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		query,
		record.ID,
		record.LocationID,
		nullString(record.CounterID),
		record.Timestamp.UTC(),
		nullInt(record.CurrentOccupancy),
		record.Capacity,
		record.OccupancyPercentage,
		nullInt(record.InCount),
		nullFloat(record.AvgDwellTime),
		nullFloat(record.MaxDwellTime),
		nullFloat(record.EstimatedWaitTime),
		nullFloat(record.ManualWaitTime),
		record.QueueLength,
		string(record.CongestionLevel),
		string(record.ServiceStatus),
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// FindByOwnerAndRange returns records within [start, end) ordered by timestamp.
func (s *RecordStore) FindByOwnerAndRange(ctx context.Context, locationID string, counterID *string, start, end time.Time) ([]telemetry.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("record store: nil db")
	}
	if locationID == "" {
		return nil, errors.New("record store: empty location id")
	}
	if start.IsZero() || end.IsZero() {
		return nil, errors.New("record store: invalid time range")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE location_id = $1
	AND ts >= $2
	AND ts < $3`, recordColumns, s.table)
	args := []any{locationID, start.UTC(), end.UTC()}
	if counterID != nil {
		query += `
	AND counter_id = $4`
		args = append(args, *counterID)
	}
	query += `
ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FindLatestPerCounter returns each counter's freshest record for a location,
// including the freshest site-level record when present.
func (s *RecordStore) FindLatestPerCounter(ctx context.Context, locationID string) ([]telemetry.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("record store: nil db")
	}
	if locationID == "" {
		return nil, errors.New("record store: empty location id")
	}

	query := fmt.Sprintf(`
SELECT DISTINCT ON (counter_id) %s
FROM %s
WHERE location_id = $1
ORDER BY counter_id, ts DESC`, recordColumns, s.table)

	rows, err := s.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

const recordColumns = `id, location_id, counter_id, ts, current_occupancy, capacity, occupancy_percentage, in_count, avg_dwell_time, max_dwell_time, estimated_wait_time, manual_wait_time, queue_length, congestion_level, service_status`

func scanRecords(rows *sql.Rows) ([]telemetry.Record, error) {
	records := make([]telemetry.Record, 0)
	for rows.Next() {
		var (
			record        telemetry.Record
			counterID     sql.NullString
			occupancy     sql.NullInt64
			inCount       sql.NullInt64
			avgDwell      sql.NullFloat64
			maxDwell      sql.NullFloat64
			estimatedWait sql.NullFloat64
			manualWait    sql.NullFloat64
			congestion    string
			status        string
		)
		if err := rows.Scan(
			&record.ID,
			&record.LocationID,
			&counterID,
			&record.Timestamp,
			&occupancy,
			&record.Capacity,
			&record.OccupancyPercentage,
			&inCount,
			&avgDwell,
			&maxDwell,
			&estimatedWait,
			&manualWait,
			&record.QueueLength,
			&congestion,
			&status,
		); err != nil {
			return nil, err
		}
		record.Timestamp = record.Timestamp.UTC()
		if counterID.Valid {
			value := counterID.String
			record.CounterID = &value
		}
		record.CurrentOccupancy = intPtr(occupancy)
		record.InCount = intPtr(inCount)
		record.AvgDwellTime = floatPtr(avgDwell)
		record.MaxDwellTime = floatPtr(maxDwell)
		record.EstimatedWaitTime = floatPtr(estimatedWait)
		record.ManualWaitTime = floatPtr(manualWait)
		record.CongestionLevel = telemetry.CongestionLevel(congestion)
		record.ServiceStatus = telemetry.ServiceStatus(status)
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	converted := int(value.Int64)
	return &converted
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	converted := value.Float64
	return &converted
}
