package seed

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tipster/internal/domain/model"
)

// Venues and categories drawn from when generating wagers.
var (
	Venues     = []string{"Ascot", "Bath", "Chester", "Doncaster", "Epsom", "Goodwood"}
	Categories = []string{"win", "place", "each-way", "exacta"}
)

// performer describes how an actor bets.
type performer struct {
	winProb  float64
	oddsMin  float64
	oddsSpan float64
	stakeMin float64
	stakeMax float64
	focus    float64 // share of wagers at the favored venue and category
}

var (
	sharp   = performer{winProb: 0.55, oddsMin: 2.8, oddsSpan: 1.2, stakeMin: 10, stakeMax: 50, focus: 0.8}
	average = performer{winProb: 0.35, oddsMin: 1.8, oddsSpan: 1.4, stakeMin: 5, stakeMax: 40, focus: 0.4}
)

// Actor is one generated actor with its history.
type Actor struct {
	ID      string
	Sharp   bool
	History []model.WagerRecord
}

// Generate returns cfg.Actors actors in a deterministic order. The first
// round(SharpShare*Actors) actors are sharp; their wagers cluster on a
// favored venue and category.
func Generate(cfg Config) []Actor {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	var idSeed [32]byte
	for i := range idSeed {
		idSeed[i] = byte(rng.UintN(256))
	}
	ids := rand.NewChaCha8(idSeed)

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	sharpCount := int(cfg.SharpShare*float64(cfg.Actors) + 0.5)

	actors := make([]Actor, cfg.Actors)
	for i := range actors {
		id, err := uuid.NewRandomFromReader(ids)
		if err != nil {
			id = uuid.New()
		}
		p := average
		if i < sharpCount {
			p = sharp
		}
		actors[i] = Actor{
			ID:      id.String(),
			Sharp:   i < sharpCount,
			History: history(rng, p, cfg.BetsPerActor, now),
		}
	}
	return actors
}

func history(rng *rand.Rand, p performer, n int, now time.Time) []model.WagerRecord {
	venue := Venues[rng.IntN(len(Venues))]
	category := Categories[rng.IntN(len(Categories))]

	out := make([]model.WagerRecord, n)
	for i := range out {
		w := model.WagerRecord{
			Venue:     venue,
			Category:  category,
			Amount:    round2(p.stakeMin + rng.Float64()*(p.stakeMax-p.stakeMin)),
			Odds:      round2(p.oddsMin + rng.Float64()*p.oddsSpan),
			Result:    model.OutcomeLost,
			Timestamp: now.Add(-time.Duration(n-i) * time.Hour),
		}
		if rng.Float64() >= p.focus {
			w.Venue = Venues[rng.IntN(len(Venues))]
			w.Category = Categories[rng.IntN(len(Categories))]
		}
		if rng.Float64() < p.winProb {
			w.Result = model.OutcomeWon
		}
		out[i] = w
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
