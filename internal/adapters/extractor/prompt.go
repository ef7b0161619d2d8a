package extractor

const systemPrompt = `You analyze settled horse racing wager histories and describe what makes the bettor profitable.
Answer with a single JSON object and nothing else, using exactly these fields:
{
  "patterns": ["short, concrete betting patterns, most important first; mention venue and bet type names where relevant"],
  "preferred_venues": ["track names"],
  "preferred_categories": ["bet types such as win, place, show"],
  "risk_tier": "conservative | moderate | aggressive",
  "success_factors": ["what drives the results"],
  "recommended_strategies": ["how others could follow this approach"]
}
If you cannot produce JSON, use plain text sections headed "Betting Patterns:", "Preferred Tracks:",
"Preferred Bet Types:", "Risk Profile:", "Success Factors:" and "Recommended Strategies:".`

func userPrompt(history string) string {
	return "Analyze this bettor's settled wagers:\n\n" + history
}
