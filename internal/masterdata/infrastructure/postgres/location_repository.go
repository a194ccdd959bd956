package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "canteen-cloud/internal/masterdata/domain"
)

const defaultLocationsTable = "locations"

// LocationRepository is a Postgres implementation for locations.
type LocationRepository struct {
	db    DBTX
	table string
}

// NewLocationRepository constructs a repository.
func NewLocationRepository(db DBTX, opts ...LocationOption) *LocationRepository {
	repo := &LocationRepository{db: db, table: defaultLocationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LocationOption configures the repository.
type LocationOption func(*LocationRepository)

// WithLocationTable overrides the default table name.
func WithLocationTable(table string) LocationOption {
	return func(repo *LocationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a location by id.
func (r *LocationRepository) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	if id == "" {
		return nil, errors.New("location repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, code, name, capacity, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode loads a location by its external cafeteria code.
func (r *LocationRepository) GetByCode(ctx context.Context, code string) (*masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	if code == "" {
		return nil, errors.New("location repo: empty code")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, code, name, capacity, active, created_at, updated_at
FROM %s
WHERE code = $1
LIMIT 1`, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

// ListActive returns all active locations ordered by creation time.
func (r *LocationRepository) ListActive(ctx context.Context) ([]masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, code, name, capacity, active, created_at, updated_at
FROM %s
WHERE active = TRUE
ORDER BY created_at ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]masterdata.Location, 0)
	for rows.Next() {
		var location masterdata.Location
		if err := rows.Scan(
			&location.ID,
			&location.TenantID,
			&location.Code,
			&location.Name,
			&location.Capacity,
			&location.Active,
			&location.CreatedAt,
			&location.UpdatedAt,
		); err != nil {
			return nil, err
		}
		location.CreatedAt = location.CreatedAt.UTC()
		location.UpdatedAt = location.UpdatedAt.UTC()
		locations = append(locations, location)
	}
	return locations, rows.Err()
}

// Save upserts a location.
func (r *LocationRepository) Save(ctx context.Context, location *masterdata.Location) error {
	if r == nil || r.db == nil {
		return errors.New("location repo: nil db")
	}
	if location == nil {
		return errors.New("location repo: nil location")
	}
	if err := location.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	code,
	name,
	capacity,
	active
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	code = EXCLUDED.code,
	name = EXCLUDED.name,
	capacity = EXCLUDED.capacity,
	active = EXCLUDED.active,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		location.ID,
		location.TenantID,
		location.Code,
		location.Name,
		location.Capacity,
		location.Active,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if location.CreatedAt.IsZero() {
		location.CreatedAt = now
	}
	location.UpdatedAt = now
	return nil
}

func (r *LocationRepository) scanOne(row *sql.Row) (*masterdata.Location, error) {
	var location masterdata.Location
	if err := row.Scan(
		&location.ID,
		&location.TenantID,
		&location.Code,
		&location.Name,
		&location.Capacity,
		&location.Active,
		&location.CreatedAt,
		&location.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	location.CreatedAt = location.CreatedAt.UTC()
	location.UpdatedAt = location.UpdatedAt.UTC()
	return &location, nil
}
