package scoring

import (
	"sort"
	"strings"

	"github.com/okian/tipster/internal/domain/model"
)

const defaultBoost = 1.1

// Option configures an Adjuster.
type Option func(*Adjuster)

// WithBoost sets the per-match multiplier. Values <= 0 are ignored.
func WithBoost(f float64) Option {
	return func(a *Adjuster) {
		if f > 0 {
			a.boost = f
		}
	}
}

// Adjuster re-scores recommendations against live conditions. It never
// touches the store; it works on copies.
type Adjuster struct {
	boost float64
}

// NewAdjuster creates an Adjuster with the default 1.1 boost.
func NewAdjuster(opts ...Option) *Adjuster {
	a := &Adjuster{boost: defaultBoost}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adjust multiplies each confidence by the boost once for every one of
// condition, weather and surface that any pattern mentions, then re-sorts
// descending. Equal confidences keep input order. Venue is not re-filtered.
func (a *Adjuster) Adjust(recs []model.Recommendation, c model.Conditions) []model.Recommendation {
	out := make([]model.Recommendation, len(recs))
	for i, r := range recs {
		applied := c
		adj := model.Recommendation{Strategy: r.Strategy.Clone(), AdjustedFor: &applied}
		adj.Confidence = r.Confidence * a.Multiplier(r.Patterns, c)
		out[i] = adj
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Multiplier returns the compounded boost for one pattern list.
func (a *Adjuster) Multiplier(patterns []string, c model.Conditions) float64 {
	m := 1.0
	for _, v := range []string{c.Condition, c.Weather, c.Surface} {
		if mentions(patterns, v) {
			m *= a.boost
		}
	}
	return m
}

// mentions reports whether any pattern contains v, case-insensitively.
// An empty value matches nothing.
func mentions(patterns []string, v string) bool {
	needle := strings.ToLower(strings.TrimSpace(v))
	if needle == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(strings.ToLower(p), needle) {
			return true
		}
	}
	return false
}
