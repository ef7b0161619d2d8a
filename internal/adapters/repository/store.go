// Package repository holds the current strategy snapshot and serves filtered,
// decayed reads from it.
package repository

import (
	"context"
	"time"

	"github.com/okian/tipster/internal/domain/model"
)

// Filter narrows a query. Empty strings match everything. A nil
// MinConfidence or a zero Limit selects the store defaults.
type Filter struct {
	Venue         string
	Category      string
	RiskTier      model.RiskTier
	MinConfidence *float64
	Limit         int
}

// SnapshotInfo describes the committed snapshot.
type SnapshotInfo struct {
	Version     uint64    `json:"version"`
	Strategies  int       `json:"strategies"`
	CommittedAt time.Time `json:"committed_at"`
}

// Store provides atomic replace and lock-free reads of the strategy set.
type Store interface {
	// ReplaceSnapshot swaps in a new strategy set. Readers see either the
	// old or the new set, never a mix. Returns ErrDuplicateKey when two
	// strategies share a key; the current snapshot is then kept.
	ReplaceSnapshot(ctx context.Context, strategies []model.Strategy, committedAt time.Time) error

	// Query returns matching recommendations ordered by confidence desc.
	// Returns ErrInvalidLimit for a negative limit.
	Query(ctx context.Context, f Filter) ([]model.Recommendation, error)

	// Lookup returns the strategy stored under key.
	// Returns ErrNotFound if the key is absent.
	Lookup(ctx context.Context, key model.Key) (model.Recommendation, error)

	// Count returns the number of strategies in the snapshot.
	Count(ctx context.Context) int

	// Info describes the committed snapshot.
	Info(ctx context.Context) SnapshotInfo
}
