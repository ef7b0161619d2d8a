package service

import "errors"

// Sentinel errors.
var (
	// ErrCycleDiscarded marks a cycle whose result was thrown away; the
	// previous snapshot stays authoritative.
	ErrCycleDiscarded = errors.New("cycle discarded")
	ErrNotStarted     = errors.New("service not started")
)
