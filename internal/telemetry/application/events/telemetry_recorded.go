package events

import "time"

// TelemetryRecorded is published after a telemetry record has been committed.
// Consumers run post-commit; their failures never reach the ingestion path.
type TelemetryRecorded struct {
	RecordID   string
	LocationID string
	CounterID  string
	OccurredAt time.Time
}
