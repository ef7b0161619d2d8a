package model

import "strings"

// RiskTier is a coarse risk classification of an actor or strategy.
type RiskTier string

// Risk tiers in declaration order. The order matters: frequency ties
// between tiers resolve to the earlier one.
const (
	RiskConservative RiskTier = "conservative"
	RiskModerate     RiskTier = "moderate"
	RiskAggressive   RiskTier = "aggressive"
)

// RiskTiers returns every known tier in declaration order.
func RiskTiers() []RiskTier {
	return []RiskTier{RiskConservative, RiskModerate, RiskAggressive}
}

// ParseRiskTier maps free text to a tier, case-insensitively.
func ParseRiskTier(s string) (RiskTier, bool) {
	switch RiskTier(strings.ToLower(strings.TrimSpace(s))) {
	case RiskConservative:
		return RiskConservative, true
	case RiskModerate:
		return RiskModerate, true
	case RiskAggressive:
		return RiskAggressive, true
	}
	return "", false
}

// Valid reports whether t is one of the known tiers.
func (t RiskTier) Valid() bool {
	_, ok := ParseRiskTier(string(t))
	return ok
}
