package service

import "errors"

// Sentinel kinds returned by the service. Domain errors are wrapped with one
// of these so the transport layer only has to know this set.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("ingest queue full")
	ErrNotStarted   = errors.New("service not started")
)
