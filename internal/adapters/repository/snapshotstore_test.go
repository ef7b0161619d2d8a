package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/okian/tipster/internal/domain/model"
)

func floatEqual(a, b float64) bool {
	const tolerance = 1e-10
	return math.Abs(a-b) < tolerance
}

func strategy(venue, category string, conf float64, updated time.Time) model.Strategy {
	return model.Strategy{
		Key:         model.Key{Venue: venue, Category: category, RiskTier: model.RiskModerate},
		Confidence:  conf,
		Patterns:    []string{venue + " " + category},
		Usage:       model.Usage{RecommendedStake: 0.02 * conf, MinOdds: 2},
		LastUpdated: updated,
	}
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func ptr(v float64) *float64 { return &v }

func confidences(recs []model.Recommendation) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r.Confidence
	}
	return out
}

func TestSnapshotStore_EmptyStore(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	recs, err := s.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", recs)
	}
	if _, err := s.Lookup(ctx, model.Key{Venue: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if info := s.Info(ctx); info.Version != 0 || info.Strategies != 0 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestSnapshotStore_QueryMinConfidenceAndLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSnapshotStore(WithClock(fixedClock(now)))

	in := []model.Strategy{
		strategy("v1", "win", 0.79, now),
		strategy("v2", "win", 0.95, now),
		strategy("v3", "win", 0.6, now),
		strategy("v4", "win", 0.82, now),
		strategy("v5", "win", 0.85, now),
	}
	if err := s.ReplaceSnapshot(ctx, in, now); err != nil {
		t.Fatalf("replace: %v", err)
	}

	recs, err := s.Query(ctx, Filter{MinConfidence: ptr(0.8), Limit: 3})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got, want := confidences(recs), []float64{0.95, 0.85, 0.82}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Defaults: min 0.7, limit 10.
	recs, _ = s.Query(ctx, Filter{})
	if got, want := confidences(recs), []float64{0.95, 0.85, 0.82, 0.79}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// The caller's input slice is never reordered.
	if in[0].Confidence != 0.79 {
		t.Errorf("input mutated: %v", in[0].Confidence)
	}
}

func TestSnapshotStore_EqualityFilters(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewSnapshotStore(WithClock(fixedClock(now)))
	aggressive := strategy("ascot", "place", 0.9, now)
	aggressive.RiskTier = model.RiskAggressive
	_ = s.ReplaceSnapshot(ctx, []model.Strategy{
		strategy("ascot", "win", 0.9, now),
		strategy("york", "win", 0.95, now),
		aggressive,
	}, now)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"venue", Filter{Venue: "ascot"}, []string{"ascot|win|moderate", "ascot|place|aggressive"}},
		{"category", Filter{Category: "win"}, []string{"york|win|moderate", "ascot|win|moderate"}},
		{"risk", Filter{RiskTier: model.RiskAggressive}, []string{"ascot|place|aggressive"}},
		{"all", Filter{Venue: "york", Category: "win", RiskTier: model.RiskModerate}, []string{"york|win|moderate"}},
		{"none", Filter{Venue: "bath"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			got := make([]string, len(recs))
			for i, r := range recs {
				got[i] = r.Key.String()
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSnapshotStore_InvalidAndCappedLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewSnapshotStore(WithClock(fixedClock(now)), WithMaxLimit(2))
	_ = s.ReplaceSnapshot(ctx, []model.Strategy{
		strategy("a", "win", 0.9, now),
		strategy("b", "win", 0.9, now),
		strategy("c", "win", 0.9, now),
	}, now)

	if _, err := s.Query(ctx, Filter{Limit: -1}); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	recs, _ := s.Query(ctx, Filter{Limit: 50})
	if len(recs) != 2 {
		t.Errorf("expected cap of 2, got %d", len(recs))
	}
	// Equal confidences keep commit order.
	if recs[0].Venue != "a" || recs[1].Venue != "b" {
		t.Errorf("unexpected order %v, %v", recs[0].Venue, recs[1].Venue)
	}
}

func TestSnapshotStore_DecayIsReadTimeAndSingleStep(t *testing.T) {
	ctx := context.Background()
	committed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := committed
	s := NewSnapshotStore(
		WithClock(func() time.Time { return now }),
		WithUpdateInterval(5*time.Minute),
		WithDefaultMinConfidence(0),
	)
	key := model.Key{Venue: "ascot", Category: "win", RiskTier: model.RiskModerate}
	_ = s.ReplaceSnapshot(ctx, []model.Strategy{strategy("ascot", "win", 0.8, committed)}, committed)

	first, _ := s.Query(ctx, Filter{})
	second, _ := s.Query(ctx, Filter{})
	if first[0].Confidence != second[0].Confidence || first[0].Confidence != 0.8 {
		t.Errorf("fresh reads differ: %v vs %v", first[0].Confidence, second[0].Confidence)
	}

	// Exactly at the interval is not stale.
	now = committed.Add(5 * time.Minute)
	if rec, _ := s.Lookup(ctx, key); rec.Confidence != 0.8 {
		t.Errorf("expected no decay at the boundary, got %v", rec.Confidence)
	}

	now = committed.Add(24 * time.Hour)
	day, _ := s.Lookup(ctx, key)
	now = committed.Add(365 * 24 * time.Hour)
	year, _ := s.Lookup(ctx, key)
	if !floatEqual(day.Confidence, 0.72) || !floatEqual(year.Confidence, 0.72) {
		t.Errorf("expected single-step decay to 0.72, got day=%v year=%v", day.Confidence, year.Confidence)
	}

	// The stored value is untouched.
	now = committed
	if rec, _ := s.Lookup(ctx, key); rec.Confidence != 0.8 {
		t.Errorf("stored confidence changed: %v", rec.Confidence)
	}
}

func TestSnapshotStore_LookupRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewSnapshotStore(WithClock(fixedClock(now)))
	in := strategy("ascot", "win", 0.9, now)
	_ = s.ReplaceSnapshot(ctx, []model.Strategy{in}, now)

	rec, err := s.Lookup(ctx, in.Key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !reflect.DeepEqual(rec.Strategy, in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", rec.Strategy, in)
	}
	if rec.AdjustedFor != nil {
		t.Errorf("lookup must not carry adjustment context")
	}

	// Mutating the returned patterns never reaches the snapshot.
	rec.Patterns[0] = "changed"
	again, _ := s.Lookup(ctx, in.Key)
	if again.Patterns[0] != "ascot win" {
		t.Errorf("snapshot aliased: %v", again.Patterns)
	}
}

func TestSnapshotStore_ReplaceIsAtomic(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewSnapshotStore(WithClock(fixedClock(now)))
	_ = s.ReplaceSnapshot(ctx, []model.Strategy{strategy("old", "win", 0.9, now)}, now)

	dup := []model.Strategy{strategy("new", "win", 0.9, now), strategy("new", "win", 0.8, now)}
	if err := s.ReplaceSnapshot(ctx, dup, now); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if s.Count(ctx) != 1 || s.Info(ctx).Version != 1 {
		t.Errorf("failed replace altered the snapshot: %+v", s.Info(ctx))
	}

	_ = s.ReplaceSnapshot(ctx, []model.Strategy{strategy("new", "win", 0.9, now), strategy("new", "place", 0.85, now)}, now)
	if _, err := s.Lookup(ctx, model.Key{Venue: "old", Category: "win", RiskTier: model.RiskModerate}); !errors.Is(err, ErrNotFound) {
		t.Errorf("old strategy survived a full replace")
	}
	if info := s.Info(ctx); info.Version != 2 || info.Strategies != 2 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestSnapshotStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewSnapshotStore(WithClock(fixedClock(now)), WithDefaultMinConfidence(0), WithDefaultLimit(100))

	build := func(gen int) []model.Strategy {
		out := make([]model.Strategy, 10)
		for i := range out {
			out[i] = strategy(fmt.Sprintf("g%d", gen), fmt.Sprintf("c%d", i), 0.5, now)
		}
		return out
	}
	_ = s.ReplaceSnapshot(ctx, build(0), now)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				recs, _ := s.Query(ctx, Filter{})
				if len(recs) != 10 {
					t.Errorf("partial snapshot: %d entries", len(recs))
					return
				}
				for _, r := range recs[1:] {
					if r.Venue != recs[0].Venue {
						t.Errorf("mixed generations: %s and %s", recs[0].Venue, r.Venue)
						return
					}
				}
			}
		}()
	}
	for gen := 1; gen <= 50; gen++ {
		if err := s.ReplaceSnapshot(ctx, build(gen), now); err != nil {
			t.Fatalf("replace: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
