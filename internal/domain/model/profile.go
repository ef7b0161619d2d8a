package model

// Extraction is the structured output of the pattern-extraction collaborator.
type Extraction struct {
	Patterns              []string `json:"patterns"`
	PreferredVenues       []string `json:"preferred_venues"`
	PreferredCategories   []string `json:"preferred_categories"`
	RiskTier              RiskTier `json:"risk_tier"`
	SuccessFactors        []string `json:"success_factors"`
	RecommendedStrategies []string `json:"recommended_strategies"`
}

// ActorProfile summarizes one actor's settled history. It is built once per
// cycle and never mutated afterwards.
type ActorProfile struct {
	ActorID             string   `json:"actor_id"`
	Profitability       float64  `json:"profitability"`
	TotalBets           int      `json:"total_bets"`
	WinRate             float64  `json:"win_rate"`
	RiskTier            RiskTier `json:"risk_tier"`
	PreferredVenues     []string `json:"preferred_venues"`
	PreferredCategories []string `json:"preferred_categories"`
	// Patterns keeps extraction order; the first entry is the headline pattern.
	Patterns       []string `json:"patterns"`
	SuccessFactors []string `json:"success_factors,omitempty"`
}
