package model

import (
	"strings"
	"time"
)

// Key identifies a strategy within one snapshot.
type Key struct {
	Venue    string   `json:"venue"`
	Category string   `json:"category"`
	RiskTier RiskTier `json:"risk_tier"`
}

// String renders the key as venue|category|risk_tier.
func (k Key) String() string {
	return strings.Join([]string{k.Venue, k.Category, string(k.RiskTier)}, "|")
}

// Usage is the sizing guidance attached to a strategy. Stake values are
// fractions of bankroll.
type Usage struct {
	RecommendedStake float64 `json:"recommended_stake"`
	MinOdds          float64 `json:"min_odds"`
	MaxStake         float64 `json:"max_stake"`
	StopLoss         float64 `json:"stop_loss"`
	TargetProfit     float64 `json:"target_profit"`
}

// Strategy is a consensus recommendation produced by one aggregation cycle.
// Confidence is an unbounded score, not a probability.
type Strategy struct {
	Key
	Confidence  float64   `json:"confidence"`
	Patterns    []string  `json:"patterns"`
	Usage       Usage     `json:"recommended_usage"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy so callers can never alias snapshot slices.
func (s Strategy) Clone() Strategy {
	out := s
	out.Patterns = append([]string(nil), s.Patterns...)
	return out
}

// Conditions describe the live situation a recommendation is adjusted for.
type Conditions struct {
	Venue     string `json:"venue,omitempty"`
	Surface   string `json:"surface"`
	Weather   string `json:"weather"`
	Condition string `json:"condition"`
}

// Recommendation is a read-time projection of a Strategy. Its confidence may
// carry decay or context adjustment; the stored strategy is never touched.
type Recommendation struct {
	Strategy
	AdjustedFor *Conditions `json:"adjusted_for,omitempty"`
}
