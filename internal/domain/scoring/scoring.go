// Package scoring holds the confidence arithmetic shared by aggregation and
// read-time adjustment: the candidate confidence formula, the per-tier usage
// table and the context adjuster.
package scoring

import (
	"github.com/okian/tipster/internal/domain/model"
)

// Usage multipliers applied to the scaled stake.
const (
	maxStakeFactor     = 2
	stopLossFactor     = 10
	targetProfitFactor = 20
)

// tierParams is one row of the usage table.
type tierParams struct {
	baseStake float64
	minOdds   float64
}

var usageTable = map[model.RiskTier]tierParams{
	model.RiskConservative: {baseStake: 0.01, minOdds: 1.5},
	model.RiskModerate:     {baseStake: 0.02, minOdds: 2.0},
	model.RiskAggressive:   {baseStake: 0.03, minOdds: 3.0},
}

// Confidence averages the venue and category frequencies of a candidate.
// The result is not clamped; values above 1.0 are legal.
func Confidence(venueFreq, categoryFreq float64) float64 {
	return (venueFreq + categoryFreq) / 2
}

// UsageFor derives sizing guidance from a risk tier and a confidence.
// Unknown tiers fall back to the moderate row.
func UsageFor(tier model.RiskTier, confidence float64) model.Usage {
	p, ok := usageTable[tier]
	if !ok {
		p = usageTable[model.RiskModerate]
	}
	stake := p.baseStake * confidence
	return model.Usage{
		RecommendedStake: stake,
		MinOdds:          p.minOdds,
		MaxStake:         maxStakeFactor * stake,
		StopLoss:         stopLossFactor * stake,
		TargetProfit:     targetProfitFactor * stake,
	}
}
