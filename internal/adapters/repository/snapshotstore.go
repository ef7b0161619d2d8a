package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/pkg/metrics"
)

// Store defaults.
const (
	DefaultMinConfidence  = 0.7
	DefaultLimit          = 10
	DefaultUpdateInterval = 5 * time.Minute

	// decayFactor is applied once to entries older than the update
	// interval, however old they are.
	decayFactor = 0.9
)

// snapshot is immutable once published.
type snapshot struct {
	byKey       map[model.Key]int
	ordered     []model.Strategy // confidence desc, ties in commit order
	version     uint64
	committedAt time.Time
}

var emptySnapshot = &snapshot{byKey: map[model.Key]int{}}

// SnapshotStore publishes each strategy set as an immutable snapshot behind
// an atomic pointer. Writers serialize on a mutex; readers never lock.
type SnapshotStore struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[snapshot]

	defaultMinConfidence float64
	defaultLimit         int
	maxLimit             int
	updateInterval       time.Duration
	now                  func() time.Time
}

var _ Store = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		defaultMinConfidence: DefaultMinConfidence,
		defaultLimit:         DefaultLimit,
		updateInterval:       DefaultUpdateInterval,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(emptySnapshot)
	return s
}

// ReplaceSnapshot implements Store.
func (s *SnapshotStore) ReplaceSnapshot(ctx context.Context, strategies []model.Strategy, committedAt time.Time) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQuery("replace", float64(time.Since(start).Microseconds())/1000.0)
	}()

	next := &snapshot{
		byKey:       make(map[model.Key]int, len(strategies)),
		ordered:     make([]model.Strategy, len(strategies)),
		committedAt: committedAt,
	}
	for i, st := range strategies {
		next.ordered[i] = st.Clone()
	}
	sort.SliceStable(next.ordered, func(i, j int) bool {
		return next.ordered[i].Confidence > next.ordered[j].Confidence
	})
	for i, st := range next.ordered {
		if _, dup := next.byKey[st.Key]; dup {
			metrics.RecordErrorByComponent("repository", "duplicate_key")
			return fmt.Errorf("%w: %s", ErrDuplicateKey, st.Key)
		}
		next.byKey[st.Key] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next.version = s.snapshot.Load().version + 1
	s.snapshot.Store(next)

	metrics.UpdateSnapshot(len(next.ordered), next.version, committedAt)
	return nil
}

// Query implements Store.
func (s *SnapshotStore) Query(ctx context.Context, f Filter) ([]model.Recommendation, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQuery("query", float64(time.Since(start).Microseconds())/1000.0)
	}()

	if f.Limit < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, f.Limit)
	}
	limit := f.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}
	minConf := s.defaultMinConfidence
	if f.MinConfidence != nil {
		minConf = *f.MinConfidence
	}

	snap := s.snapshot.Load()
	now := s.now()
	out := make([]model.Recommendation, 0, min(limit, len(snap.ordered)))
	decayed := 0
	for _, st := range snap.ordered {
		if len(out) == limit {
			break
		}
		if !matches(st.Key, f) || st.Confidence < minConf {
			continue
		}
		rec := s.project(st, now)
		if rec.Confidence != st.Confidence {
			decayed++
		}
		out = append(out, rec)
	}
	if decayed > 0 {
		metrics.RecordDecayedReads(decayed)
	}
	return out, nil
}

// Lookup implements Store.
func (s *SnapshotStore) Lookup(ctx context.Context, key model.Key) (model.Recommendation, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQuery("lookup", float64(time.Since(start).Microseconds())/1000.0)
	}()

	snap := s.snapshot.Load()
	i, ok := snap.byKey[key]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Recommendation{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.project(snap.ordered[i], s.now()), nil
}

// Count implements Store.
func (s *SnapshotStore) Count(ctx context.Context) int {
	return len(s.snapshot.Load().ordered)
}

// Info implements Store.
func (s *SnapshotStore) Info(ctx context.Context) SnapshotInfo {
	snap := s.snapshot.Load()
	return SnapshotInfo{
		Version:     snap.version,
		Strategies:  len(snap.ordered),
		CommittedAt: snap.committedAt,
	}
}

// project copies st into a Recommendation, decaying a stale confidence once.
func (s *SnapshotStore) project(st model.Strategy, now time.Time) model.Recommendation {
	rec := model.Recommendation{Strategy: st.Clone()}
	if now.Sub(st.LastUpdated) > s.updateInterval {
		rec.Confidence = st.Confidence * decayFactor
	}
	return rec
}

func matches(k model.Key, f Filter) bool {
	return (f.Venue == "" || k.Venue == f.Venue) &&
		(f.Category == "" || k.Category == f.Category) &&
		(f.RiskTier == "" || k.RiskTier == f.RiskTier)
}
