// Package publish renders top recommendations as short social-feed
// messages and hands them to a sink.
package publish

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/tipster/internal/domain/model"
)

// Message limits.
const (
	MaxMessageRunes = 280
	MaxPatternRunes = 50
	ellipsis        = "..."
)

// Fixed message parts.
const (
	Disclaimer = "Not financial advice. 18+ Gamble responsibly."
	Hashtags   = "#HorseRacing #BettingTips #Tipster"
)

// Format renders rec within MaxMessageRunes. An over-long message is cut
// and ends with "...".
func Format(rec model.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s | %s risk\n", rec.Venue, rec.Category, rec.RiskTier)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", rec.Confidence*100)
	if len(rec.Patterns) > 0 {
		fmt.Fprintf(&b, "Key pattern: %s\n", truncate(rec.Patterns[0], MaxPatternRunes))
	}
	fmt.Fprintf(&b, "Stake %.2f%% of bankroll, min odds %.1f, max stake %.2f%%\n",
		rec.Usage.RecommendedStake*100, rec.Usage.MinOdds, rec.Usage.MaxStake*100)
	b.WriteString(Disclaimer)
	b.WriteString("\n")
	b.WriteString(Hashtags)

	return truncate(b.String(), MaxMessageRunes)
}

// truncate cuts s to at most n runes, ending in "..." when anything was cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:keep]), " \n") + ellipsis
}
