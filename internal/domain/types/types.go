// Package types contains small view types shared by the HTTP API and the
// publishing adapter.
package types

import "github.com/okian/tipster/internal/domain/model"

// Entry is one row of a ranked recommendation listing.
type Entry struct {
	Rank       int     `json:"rank"`
	Key        string  `json:"key"`
	Confidence float64 `json:"confidence"`
	Stake      float64 `json:"recommended_stake"`
	MinOdds    float64 `json:"min_odds"`
}

// Rank numbers recs from 1 in their current order.
func Rank(recs []model.Recommendation) []Entry {
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = Entry{
			Rank:       i + 1,
			Key:        r.Key.String(),
			Confidence: r.Confidence,
			Stake:      r.Usage.RecommendedStake,
			MinOdds:    r.Usage.MinOdds,
		}
	}
	return out
}
