package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Shilder25/opinion-arena/internal/collectors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// personas give each firm a distinct decision temperament. The prompt
// body is shared; only the preamble differs.
var personas = map[string]string{
	"ChatGPT":  "You run a disciplined quantitative desk. You distrust narratives and weight base rates heavily. You only deviate from the market price when the evidence is strong.",
	"Gemini":   "You run an aggressive event-driven desk. You hunt for mispriced catalysts and are willing to take contrarian positions when sentiment lags the facts.",
	"Qwen":     "You run a conservative macro desk. You prioritise capital preservation, prefer high-conviction setups, and sit out ambiguous markets.",
	"Deepseek": "You run a data-driven statistical desk. You reason from measurable signals and penalise any claim the reports cannot support.",
	"Grok":     "You run a fast-moving momentum desk. You weight crowd positioning and recent price action heavily and act decisively on clear trends.",
}

const defaultPersona = "You run an autonomous trading desk focused on risk-adjusted returns."

// systemPrompt returns the firm's persona preamble.
func systemPrompt(firmName string) string {
	persona, ok := personas[firmName]
	if !ok {
		persona = defaultPersona
	}
	return fmt.Sprintf(
		"You are the executive intelligence of the autonomous trading firm %q competing on a binary prediction-market venue. %s Your output feeds a fully automated execution pipeline: respond with valid JSON only.",
		firmName, persona)
}

// BuildPrompt assembles the structured decision prompt for one market
// from the collector reports.
func BuildPrompt(firm *models.Firm, m *models.Market, reports map[string]collectors.Report) (string, string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Prediction target: %s\n", m.Title)
	fmt.Fprintf(&b, "Category: %s | Market ID: %d\n", m.Category, m.MarketID)
	fmt.Fprintf(&b, "Current market pricing: YES ask %.3f, bid %.3f\n\n", m.AskPrice, m.BidPrice)

	areas := make([]string, 0, len(reports))
	for area := range reports {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	for _, area := range areas {
		r := reports[area]
		fmt.Fprintf(&b, "=== %s REPORT (score %.1f/10) ===\n%s\n\n", strings.ToUpper(area), r.Score, r.Analysis)
	}

	b.WriteString(`Reason in three stages before answering:

STAGE I - Synthesis: condense the reports into the three strongest factors for and against the event occurring (max 150 words).

STAGE II - Debate: argue the bull case and the bear case against each other, then state a preliminary direction (YES or NO) with a confidence level.

STAGE III - Risk adjustment: assess the drawdown if you are wrong. Low confidence pulls the probability toward 0.50; high confidence pushes it toward the extremes.

Respond with ONLY this JSON object, no surrounding text:

{
  "probability": <decimal 0.00-1.00, probability the event resolves YES>,
  "confidence": <0-10>,
  "sentiment_score": <0-10>,
  "news_score": <0-10>,
  "technical_score": <0-10>,
  "fundamental_score": <0-10>,
  "volatility_score": <0-10>,
  "sentiment_analysis": "<assessment>",
  "news_analysis": "<assessment>",
  "technical_analysis": "<assessment>",
  "fundamental_analysis": "<assessment>",
  "volatility_analysis": "<assessment>",
  "probability_reasoning": "<stage III justification for the final probability>"
}`)

	return systemPrompt(firm.Name), b.String()
}
