package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	telemetry "canteen-cloud/internal/telemetry/domain"
	telemetrypostgres "canteen-cloud/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestTelemetryPerf_30dInsert_7dQuery(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "telemetry_records") {
		t.Skip("telemetry_records missing; run schema.sql")
	}

	ctx := context.Background()
	locationID := "location-perf"
	counterID := "counter-perf"

	start := time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour)
	end := time.Now().UTC().Truncate(24 * time.Hour)

	_, _ = db.ExecContext(ctx, `
DELETE FROM telemetry_records
WHERE location_id = $1 AND ts >= $2 AND ts < $3`, locationID, start, end)

	store := telemetrypostgres.NewRecordStore(db)

	insertStart := time.Now()
	for day := 0; day < 30; day++ {
		dayStart := start.AddDate(0, 0, day)
		for hour := 0; hour < 24; hour++ {
			ts := dayStart.Add(time.Duration(hour) * time.Hour)
			occupancy := hour + 5
			inCount := day*100 + hour
			record := &telemetry.Record{
				LocationID:       locationID,
				CounterID:        &counterID,
				Timestamp:        ts,
				CurrentOccupancy: &occupancy,
				InCount:          &inCount,
				Capacity:         100,
				CongestionLevel:  telemetry.CongestionLow,
				ServiceStatus:    telemetry.StatusReadyToServe,
			}
			if err := store.Save(ctx, record); err != nil {
				t.Fatalf("save record: %v", err)
			}
		}
	}
	insertElapsed := time.Since(insertStart)

	queryStart := time.Now()
	queryFrom := end.AddDate(0, 0, -7)
	records, err := store.FindByOwnerAndRange(ctx, locationID, nil, queryFrom, end)
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	rangeElapsed := time.Since(queryStart)

	latestStart := time.Now()
	latest, err := store.FindLatestPerCounter(ctx, locationID)
	if err != nil {
		t.Fatalf("query latest: %v", err)
	}
	latestElapsed := time.Since(latestStart)

	t.Logf("perf insert 30d rows=%d elapsed=%s", 30*24, insertElapsed)
	t.Logf("perf query 7d range rows=%d elapsed=%s", len(records), rangeElapsed)
	t.Logf("perf query latest rows=%d elapsed=%s", len(latest), latestElapsed)
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (
SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).Scan(&exists)
	return err == nil && exists
}
