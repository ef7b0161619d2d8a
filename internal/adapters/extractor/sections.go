package extractor

import (
	"regexp"
	"strings"

	"github.com/okian/tipster/internal/domain/model"
)

type section int

const (
	sectionNone section = iota
	sectionPatterns
	sectionVenues
	sectionCategories
	sectionRisk
	sectionFactors
	sectionStrategies
)

// headerLabels maps lower-cased header text to its section.
var headerLabels = map[string]section{
	"betting patterns":       sectionPatterns,
	"patterns":               sectionPatterns,
	"preferred tracks":       sectionVenues,
	"preferred venues":       sectionVenues,
	"preferred bet types":    sectionCategories,
	"preferred categories":   sectionCategories,
	"risk profile":           sectionRisk,
	"risk tier":              sectionRisk,
	"success factors":        sectionFactors,
	"recommended strategies": sectionStrategies,
}

var numbering = regexp.MustCompile(`^\d+[.)]\s+`)

// ParseSections reads free text laid out under fixed headers such as
// "Betting Patterns:" or "Risk Profile:". Headers match case-insensitively
// and may carry markdown emphasis, heading marks or numbering. Text under
// an unknown header is ignored, and a section that never appears leaves
// its field empty.
func ParseSections(text string) model.Extraction {
	var ext model.Extraction
	cur := sectionNone

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !isBullet(line) {
			if sec, rest, ok := parseHeader(line); ok {
				cur = sec
				if rest != "" {
					addItem(&ext, cur, rest)
				}
				continue
			}
			if looksLikeHeader(line) {
				cur = sectionNone
				continue
			}
		}
		addItem(&ext, cur, line)
	}
	return ext
}

func isBullet(line string) bool {
	for _, p := range []string{"- ", "* ", "+ ", "•"} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func stripMarkup(s string) string {
	s = strings.TrimLeft(s, "# ")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

// parseHeader recognizes "Label:", "Label: inline value" and bare "Label".
func parseHeader(line string) (section, string, bool) {
	s := numbering.ReplaceAllString(stripMarkup(line), "")
	label, rest := s, ""
	if i := strings.Index(s, ":"); i >= 0 {
		label, rest = s[:i], s[i+1:]
	}
	sec, ok := headerLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return sectionNone, "", false
	}
	return sec, strings.TrimSpace(rest), true
}

func looksLikeHeader(line string) bool {
	return strings.HasPrefix(line, "#") || strings.HasSuffix(stripMarkup(line), ":")
}

func cleanItem(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*+• ")
	s = numbering.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

func addItem(ext *model.Extraction, sec section, line string) {
	item := cleanItem(line)
	if item == "" {
		return
	}
	switch sec {
	case sectionPatterns:
		ext.Patterns = append(ext.Patterns, item)
	case sectionVenues:
		ext.PreferredVenues = append(ext.PreferredVenues, splitList(item)...)
	case sectionCategories:
		ext.PreferredCategories = append(ext.PreferredCategories, splitList(item)...)
	case sectionRisk:
		if ext.RiskTier == "" {
			ext.RiskTier = findTier(item)
		}
	case sectionFactors:
		ext.SuccessFactors = append(ext.SuccessFactors, item)
	case sectionStrategies:
		ext.RecommendedStrategies = append(ext.RecommendedStrategies, item)
	case sectionNone:
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// findTier returns the tier word appearing earliest in s.
func findTier(s string) model.RiskTier {
	lower := strings.ToLower(s)
	best, at := model.RiskTier(""), len(lower)
	for _, t := range model.RiskTiers() {
		if i := strings.Index(lower, string(t)); i >= 0 && i < at {
			best, at = t, i
		}
	}
	return best
}
