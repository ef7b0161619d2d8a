// Package aggregate merges actor profiles into consensus strategies.
//
// Aggregation is a pure function of its input profiles and clock: the same
// profiles and the same now always yield the same strategies in the same
// order.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/internal/domain/profile"
	"github.com/okian/tipster/internal/domain/scoring"
)

const defaultTopN = 3

// Frequency is the share of profiles carrying a value.
type Frequency struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Result is the output of one aggregation pass.
type Result struct {
	Strategies         []model.Strategy `json:"strategies"`
	DominantRisk       model.RiskTier   `json:"dominant_risk"`
	RiskFrequency      []Frequency      `json:"risk_frequency"`
	VenueFrequency     []Frequency      `json:"venue_frequency"`
	CategoryFrequency  []Frequency      `json:"category_frequency"`
	SuccessFactors     []Frequency      `json:"success_factors"`
	ProfilesConsidered int              `json:"profiles_considered"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMinBets sets the retention threshold on history length.
func WithMinBets(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.minBets = n
		}
	}
}

// WithProfitableThreshold sets the retention threshold on profitability.
func WithProfitableThreshold(v float64) Option {
	return func(a *Aggregator) {
		if v >= 0 {
			a.threshold = v
		}
	}
}

// WithTopN sets how many venues and categories form the candidate grid.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// Aggregator holds thresholds only; it has no mutable state.
type Aggregator struct {
	minBets   int
	threshold float64
	topN      int
}

// New creates an Aggregator with default thresholds.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		minBets:   profile.DefaultMinBets,
		threshold: profile.DefaultProfitableThreshold,
		topN:      defaultTopN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns nil when no profile passes the retention predicate.
// A non-nil result may still carry zero strategies when no candidate has
// pattern evidence.
func (a *Aggregator) Aggregate(profiles []model.ActorProfile, now time.Time) *Result {
	valid := make([]model.ActorProfile, 0, len(profiles))
	for _, p := range profiles {
		if profile.Valid(p, a.minBets, a.threshold) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	total := float64(len(valid))
	risk := riskFrequency(valid, total)
	venues := setFrequency(valid, total, func(p model.ActorProfile) []string { return p.PreferredVenues })
	cats := setFrequency(valid, total, func(p model.ActorProfile) []string { return p.PreferredCategories })
	factors := setFrequency(valid, total, func(p model.ActorProfile) []string { return p.SuccessFactors })

	dominant := model.RiskTier(risk[0].Name)
	strategies := make([]model.Strategy, 0, a.topN*a.topN)
	for _, v := range top(venues, a.topN) {
		for _, c := range top(cats, a.topN) {
			patterns := relevantPatterns(valid, v.Name, c.Name)
			if len(patterns) == 0 {
				continue
			}
			conf := scoring.Confidence(v.Value, c.Value)
			strategies = append(strategies, model.Strategy{
				Key:         model.Key{Venue: v.Name, Category: c.Name, RiskTier: dominant},
				Confidence:  conf,
				Patterns:    patterns,
				Usage:       scoring.UsageFor(dominant, conf),
				LastUpdated: now,
			})
		}
	}
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].Confidence > strategies[j].Confidence
	})

	return &Result{
		Strategies:         strategies,
		DominantRisk:       dominant,
		RiskFrequency:      risk,
		VenueFrequency:     venues,
		CategoryFrequency:  cats,
		SuccessFactors:     factors,
		ProfilesConsidered: len(valid),
		GeneratedAt:        now,
	}
}

// riskFrequency ranks every tier; ties keep declaration order.
func riskFrequency(profiles []model.ActorProfile, total float64) []Frequency {
	tiers := model.RiskTiers()
	out := make([]Frequency, len(tiers))
	for i, t := range tiers {
		n := 0
		for _, p := range profiles {
			if p.RiskTier == t {
				n++
			}
		}
		out[i] = Frequency{Name: string(t), Value: float64(n) / total}
	}
	sortDesc(out)
	return out
}

// setFrequency counts each value at most once per profile; ties keep
// first-seen order across profiles.
func setFrequency(profiles []model.ActorProfile, total float64, field func(model.ActorProfile) []string) []Frequency {
	index := make(map[string]int)
	var out []Frequency
	for _, p := range profiles {
		seen := make(map[string]struct{})
		for _, v := range field(p) {
			if _, dup := seen[v]; dup || v == "" {
				continue
			}
			seen[v] = struct{}{}
			i, ok := index[v]
			if !ok {
				i = len(out)
				index[v] = i
				out = append(out, Frequency{Name: v})
			}
			out[i].Value++
		}
	}
	for i := range out {
		out[i].Value /= total
	}
	sortDesc(out)
	return out
}

func sortDesc(f []Frequency) {
	sort.SliceStable(f, func(i, j int) bool { return f[i].Value > f[j].Value })
}

func top(f []Frequency, n int) []Frequency {
	if len(f) > n {
		return f[:n]
	}
	return f
}

// relevantPatterns collects, in profile order, every pattern mentioning the
// venue or the category. Duplicates across profiles collapse.
func relevantPatterns(profiles []model.ActorProfile, venue, category string) []string {
	v := strings.ToLower(venue)
	c := strings.ToLower(category)
	seen := make(map[string]struct{})
	var out []string
	for _, p := range profiles {
		for _, pat := range p.Patterns {
			lp := strings.ToLower(pat)
			if !strings.Contains(lp, v) && !strings.Contains(lp, c) {
				continue
			}
			if _, dup := seen[pat]; dup {
				continue
			}
			seen[pat] = struct{}{}
			out = append(out, pat)
		}
	}
	return out
}
