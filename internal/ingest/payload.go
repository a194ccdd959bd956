package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload is the inbound telemetry message. Every field is optional; devices of
// different generations emit different subsets. Duration fields arrive in
// seconds. Numeric fields may carry placeholder text ("ready to serve"), which
// parses to absent rather than failing the event.
type Payload struct {
	DeviceID      string   `json:"deviceId"`
	CafeteriaCode string   `json:"cafeteriaCode"`
	Timestamp     string   `json:"timestamp"`
	Occupancy     OptInt   `json:"occupancy"`
	AvgDwell      OptFloat `json:"avg_dwell"`
	MaxDwell      OptFloat `json:"max_dwell"`
	InCount       OptInt   `json:"incount"`
	EstimateWait  OptFloat `json:"estimate_wait_time"`
	WaitingTime   OptFloat `json:"waiting_time_min"`
}

// ParsePayload decodes an inbound message. Only structurally invalid JSON is an
// error; individual unparseable fields degrade to absent.
func ParsePayload(data []byte) (Payload, error) {
	var payload Payload
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&payload); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	return payload, nil
}

// EventTime parses the payload timestamp. Device clocks emit naive local
// ISO-8601; a missing or unparseable timestamp falls back to now.
func (p Payload) EventTime(now time.Time) time.Time {
	if p.Timestamp == "" {
		return now.UTC()
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, p.Timestamp); err == nil {
			return ts.UTC()
		}
	}
	return now.UTC()
}

// OptFloat is an optional float64 that tolerates numbers, numeric strings and
// arbitrary placeholder text in the wire format.
type OptFloat struct {
	Value float64
	Set   bool
}

// UnmarshalJSON parses leniently; non-numeric input leaves the field unset.
func (f *OptFloat) UnmarshalJSON(data []byte) error {
	f.Value, f.Set = parseLenientFloat(data)
	return nil
}

// Ptr returns the value as a pointer, nil when unset.
func (f OptFloat) Ptr() *float64 {
	if !f.Set {
		return nil
	}
	value := f.Value
	return &value
}

// OptInt is an optional integer with the same lenient parsing as OptFloat.
type OptInt struct {
	Value int
	Set   bool
}

// UnmarshalJSON parses leniently; non-numeric input leaves the field unset.
func (i *OptInt) UnmarshalJSON(data []byte) error {
	value, ok := parseLenientFloat(data)
	if !ok {
		i.Set = false
		return nil
	}
	i.Value = int(value)
	i.Set = true
	return nil
}

// Ptr returns the value as a pointer, nil when unset.
func (i OptInt) Ptr() *int {
	if !i.Set {
		return nil
	}
	value := i.Value
	return &value
}

func parseLenientFloat(data []byte) (float64, bool) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}
	if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return value, true
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return 0, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
