package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "canteen-cloud/internal/masterdata/domain"
)

const defaultCountersTable = "counters"

// CounterRepository is a Postgres implementation for food counters.
type CounterRepository struct {
	db    DBTX
	table string
}

// NewCounterRepository constructs a repository.
func NewCounterRepository(db DBTX, opts ...CounterOption) *CounterRepository {
	repo := &CounterRepository{db: db, table: defaultCountersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CounterOption configures the repository.
type CounterOption func(*CounterRepository)

// WithCounterTable overrides the default table name.
func WithCounterTable(table string) CounterOption {
	return func(repo *CounterRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a counter by id.
func (r *CounterRepository) Get(ctx context.Context, id string) (*masterdata.Counter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("counter repo: nil db")
	}
	if id == "" {
		return nil, errors.New("counter repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, location_id, device_id, name, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByDeviceID loads a counter by its stable external device identifier.
func (r *CounterRepository) GetByDeviceID(ctx context.Context, deviceID string) (*masterdata.Counter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("counter repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("counter repo: empty device id")
	}

	query := fmt.Sprintf(`
SELECT id, location_id, device_id, name, active, created_at, updated_at
FROM %s
WHERE device_id = $1
LIMIT 1`, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, deviceID))
}

// ListByLocation loads counters for a location.
func (r *CounterRepository) ListByLocation(ctx context.Context, locationID string) ([]masterdata.Counter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("counter repo: nil db")
	}
	if locationID == "" {
		return nil, errors.New("counter repo: empty location id")
	}

	query := fmt.Sprintf(`
SELECT id, location_id, device_id, name, active, created_at, updated_at
FROM %s
WHERE location_id = $1
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := make([]masterdata.Counter, 0)
	for rows.Next() {
		var counter masterdata.Counter
		if err := rows.Scan(
			&counter.ID,
			&counter.LocationID,
			&counter.DeviceID,
			&counter.Name,
			&counter.Active,
			&counter.CreatedAt,
			&counter.UpdatedAt,
		); err != nil {
			return nil, err
		}
		counter.CreatedAt = counter.CreatedAt.UTC()
		counter.UpdatedAt = counter.UpdatedAt.UTC()
		counters = append(counters, counter)
	}
	return counters, rows.Err()
}

// Save upserts a counter.
func (r *CounterRepository) Save(ctx context.Context, counter *masterdata.Counter) error {
	if r == nil || r.db == nil {
		return errors.New("counter repo: nil db")
	}
	if counter == nil {
		return errors.New("counter repo: nil counter")
	}
	if err := counter.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	location_id,
	device_id,
	name,
	active
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	location_id = EXCLUDED.location_id,
	device_id = EXCLUDED.device_id,
	name = EXCLUDED.name,
	active = EXCLUDED.active,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		counter.ID,
		counter.LocationID,
		counter.DeviceID,
		counter.Name,
		counter.Active,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	counter.UpdatedAt = now
	return nil
}

func (r *CounterRepository) scanOne(row *sql.Row) (*masterdata.Counter, error) {
	var counter masterdata.Counter
	if err := row.Scan(
		&counter.ID,
		&counter.LocationID,
		&counter.DeviceID,
		&counter.Name,
		&counter.Active,
		&counter.CreatedAt,
		&counter.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	counter.CreatedAt = counter.CreatedAt.UTC()
	counter.UpdatedAt = counter.UpdatedAt.UTC()
	return &counter, nil
}
