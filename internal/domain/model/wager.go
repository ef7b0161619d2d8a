// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Outcome is the settled result of a wager.
type Outcome string

// Wager outcomes.
const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// WagerRecord is one settled wager from an actor's history.
type WagerRecord struct {
	Venue     string    `json:"venue"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Odds      float64   `json:"odds"`
	Result    Outcome   `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Won reports whether the wager paid out.
func (w WagerRecord) Won() bool {
	return Outcome(strings.ToLower(string(w.Result))) == OutcomeWon
}
