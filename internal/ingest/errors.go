package ingest

import "errors"

var (
	// ErrMalformedPayload is returned when the inbound payload cannot be parsed
	// as structured data. The event is dropped without persistence.
	ErrMalformedPayload = errors.New("ingest: malformed payload")
	// ErrNoResolvableOwner is returned when every owner fallback step failed.
	// The event is dropped without persistence.
	ErrNoResolvableOwner = errors.New("ingest: no resolvable owner")
)
