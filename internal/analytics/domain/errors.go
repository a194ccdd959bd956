package analytics

import "errors"

var (
	// ErrLocationNotFound is returned when an aggregation targets an unknown location.
	ErrLocationNotFound = errors.New("analytics: location not found")
	// ErrInvalidGranularity is returned when granularity is unsupported.
	ErrInvalidGranularity = errors.New("analytics: invalid granularity")
	// ErrInvalidRange is returned when the query range is empty or reversed.
	ErrInvalidRange = errors.New("analytics: invalid time range")
)
