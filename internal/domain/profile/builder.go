// Package profile turns one actor's settled wager history into a validated
// ActorProfile.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/pkg/logger"
	"github.com/shopspring/decimal"
)

// Default thresholds.
const (
	DefaultMinBets             = 50
	DefaultProfitableThreshold = 1.5
)

// Extractor turns a serialized history into structured pattern sections.
type Extractor interface {
	Extract(ctx context.Context, input string) (model.Extraction, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, input string) (model.Extraction, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, input string) (model.Extraction, error) {
	return f(ctx, input)
}

// Option configures a Builder.
type Option func(*Builder)

// WithMinBets sets the minimum history length. Values < 1 are ignored.
func WithMinBets(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.minBets = n
		}
	}
}

// WithProfitableThreshold sets the minimum profitability ratio.
func WithProfitableThreshold(v float64) Option {
	return func(b *Builder) {
		if v >= 0 {
			b.threshold = v
		}
	}
}

// WithExtractor sets the pattern-extraction collaborator.
func WithExtractor(e Extractor) Option {
	return func(b *Builder) {
		if e != nil {
			b.extractor = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// Builder builds profiles. It is safe for concurrent use once constructed.
type Builder struct {
	minBets   int
	threshold float64
	extractor Extractor
	log       logger.Logger
}

// NewBuilder creates a Builder. Without an extractor every profile comes out
// with empty pattern sections.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		minBets:   DefaultMinBets,
		threshold: DefaultProfitableThreshold,
		extractor: ExtractorFunc(func(context.Context, string) (model.Extraction, error) {
			return model.Extraction{}, nil
		}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MinBets returns the configured history threshold.
func (b *Builder) MinBets() int { return b.minBets }

// Threshold returns the configured profitability threshold.
func (b *Builder) Threshold() float64 { return b.threshold }

// Build validates history and returns the actor's profile. Validation
// failures wrap ErrValidation; extractor failures wrap ErrCollaborator.
func (b *Builder) Build(ctx context.Context, actorID string, history []model.WagerRecord) (*model.ActorProfile, error) {
	if len(history) < b.minBets {
		return nil, fmt.Errorf("%w: %d of %d bets", ErrInsufficientHistory, len(history), b.minBets)
	}

	profitability, winRate := Summarize(history)
	if profitability < b.threshold {
		return nil, fmt.Errorf("%w: %.4f < %.4f", ErrUnprofitable, profitability, b.threshold)
	}

	input, err := serialize(actorID, profitability, winRate, history)
	if err != nil {
		return nil, fmt.Errorf("serialize history: %w", err)
	}

	ext, err := b.extractor.Extract(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: extract patterns for %s: %w", ErrCollaborator, actorID, err)
	}
	ext = Sanitize(ext)

	if b.log != nil && len(ext.Patterns) == 0 {
		b.log.Debug(ctx, "extraction returned no patterns", logger.String("actor_id", actorID))
	}

	return &model.ActorProfile{
		ActorID:             actorID,
		Profitability:       profitability,
		TotalBets:           len(history),
		WinRate:             winRate,
		RiskTier:            ext.RiskTier,
		PreferredVenues:     ext.PreferredVenues,
		PreferredCategories: ext.PreferredCategories,
		Patterns:            ext.Patterns,
		SuccessFactors:      ext.SuccessFactors,
	}, nil
}

// Summarize returns returns-to-stake profitability and win rate. A zero
// total stake yields zero profitability.
func Summarize(history []model.WagerRecord) (profitability, winRate float64) {
	if len(history) == 0 {
		return 0, 0
	}
	staked := decimal.Zero
	returned := decimal.Zero
	won := 0
	for _, w := range history {
		amount := decimal.NewFromFloat(w.Amount)
		staked = staked.Add(amount)
		if w.Won() {
			won++
			returned = returned.Add(amount.Mul(decimal.NewFromFloat(w.Odds)))
		}
	}
	winRate = float64(won) / float64(len(history))
	if staked.IsZero() {
		return 0, winRate
	}
	profitability, _ = returned.Div(staked).Float64()
	if profitability < 0 {
		profitability = 0
	}
	return profitability, winRate
}

// Valid is the retention predicate shared by the builder and the aggregator.
func Valid(p model.ActorProfile, minBets int, threshold float64) bool {
	return p.TotalBets >= minBets && p.Profitability >= threshold
}

// Sanitize trims and de-duplicates every list section, preserving first-seen
// order, and clears an unknown risk tier.
func Sanitize(e model.Extraction) model.Extraction {
	out := model.Extraction{
		Patterns:              uniq(e.Patterns),
		PreferredVenues:       uniq(e.PreferredVenues),
		PreferredCategories:   uniq(e.PreferredCategories),
		SuccessFactors:        uniq(e.SuccessFactors),
		RecommendedStrategies: uniq(e.RecommendedStrategies),
	}
	if t, ok := model.ParseRiskTier(string(e.RiskTier)); ok {
		out.RiskTier = t
	}
	return out
}

func uniq(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

type historyDocument struct {
	ActorID       string              `json:"actor_id"`
	TotalBets     int                 `json:"total_bets"`
	Profitability float64             `json:"profitability"`
	WinRate       float64             `json:"win_rate"`
	Records       []model.WagerRecord `json:"records"`
}

func serialize(actorID string, profitability, winRate float64, history []model.WagerRecord) (string, error) {
	raw, err := json.Marshal(historyDocument{
		ActorID:       actorID,
		TotalBets:     len(history),
		Profitability: profitability,
		WinRate:       winRate,
		Records:       history,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
