package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("strategy not found")
	ErrInvalidLimit = errors.New("invalid query limit")
	ErrDuplicateKey = errors.New("duplicate strategy key")
)
