// Package seed generates synthetic wager histories, loads them into the
// history database and optionally drives a cycle against a running service.
package seed

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid seed config")

// Config holds configuration for a seeding run.
type Config struct {
	DSN          string        // History database
	Actors       int           // Number of actors to generate
	BetsPerActor int           // Wagers per actor
	SharpShare   float64       // Fraction of actors that are profitable
	Seed         uint64        // PRNG seed; equal seeds give equal data
	ServiceURL   string        // When set, POST /cycles and print the top recommendations
	Top          int           // Recommendations to fetch after the cycle
	Timeout      time.Duration // HTTP request timeout
	Now          time.Time     // Timestamp of the newest wager
}

// Validate checks the numeric ranges.
func (c Config) Validate() error {
	switch {
	case c.DSN == "":
		return fmt.Errorf("%w: dsn is required", ErrInvalidConfig)
	case c.Actors < 1:
		return fmt.Errorf("%w: actors must be positive", ErrInvalidConfig)
	case c.BetsPerActor < 1:
		return fmt.Errorf("%w: bets per actor must be positive", ErrInvalidConfig)
	case c.SharpShare < 0 || c.SharpShare > 1:
		return fmt.Errorf("%w: sharp share must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	ActorsGenerated int
	SharpActors     int
	WagersInserted  int
	StartTime       time.Time
	Duration        time.Duration
}
