package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
)

func TestValidateDecision(t *testing.T) {
	blob := `{
		"probability": 0.72,
		"confidence": 8,
		"sentiment_score": 7,
		"news_score": 6,
		"technical_score": 5,
		"fundamental_score": 4,
		"volatility_score": 3,
		"probability_reasoning": "Strong on-chain flows"
	}`
	p, err := ValidateDecision("alpha", 100, blob)
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.FirmName)
	assert.Equal(t, int64(100), p.MarketID)
	assert.NotEmpty(t, p.ID)
	assert.InDelta(t, 0.72, p.Probability, 1e-9)
	assert.InDelta(t, 8, p.Confidence, 1e-9)
	assert.InDelta(t, 7, p.SentimentScore, 1e-9)
	assert.Equal(t, "Strong on-chain flows", p.ProbabilityReasoning)
	assert.Equal(t, "No sentiment analysis provided", p.SentimentAnalysis)
}

func TestValidateDecisionPercentNormalisation(t *testing.T) {
	// Models that answer in percent get divided down.
	p, err := ValidateDecision("alpha", 100, `{"probability": 72, "probability_reasoning": "r"}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.72, p.Probability, 1e-9)

	// Exactly 1 stays 1, not 0.01.
	p, err = ValidateDecision("alpha", 100, `{"probability": 1, "probability_reasoning": "r"}`)
	require.NoError(t, err)
	assert.InDelta(t, 1, p.Probability, 1e-9)

	// Confidence on a 0-100 scale maps onto 0-10.
	p, err = ValidateDecision("alpha", 100, `{"probability": 0.6, "confidence": 80, "probability_reasoning": "r"}`)
	require.NoError(t, err)
	assert.InDelta(t, 8, p.Confidence, 1e-9)
}

func TestValidateDecisionDefaults(t *testing.T) {
	p, err := ValidateDecision("alpha", 100, `{"probability": 0.6, "probability_reasoning": "r"}`)
	require.NoError(t, err)
	assert.InDelta(t, 5, p.Confidence, 1e-9)
	assert.InDelta(t, 5, p.SentimentScore, 1e-9)
	assert.InDelta(t, 5, p.NewsScore, 1e-9)
	assert.InDelta(t, 5, p.VolatilityScore, 1e-9)

	// Out-of-range values fall back to neutral rather than rejecting.
	p, err = ValidateDecision("alpha", 100, `{"probability": 0.6, "confidence": 400, "news_score": -3, "probability_reasoning": "r"}`)
	require.NoError(t, err)
	assert.InDelta(t, 5, p.Confidence, 1e-9)
	assert.InDelta(t, 5, p.NewsScore, 1e-9)
}

func TestValidateDecisionStringNumbers(t *testing.T) {
	p, err := ValidateDecision("alpha", 100, `{"probability": "0.65", "confidence": "7", "probability_reasoning": "r"}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, p.Probability, 1e-9)
	assert.InDelta(t, 7, p.Confidence, 1e-9)
}

func TestValidateDecisionCodeFences(t *testing.T) {
	blob := "```json\n{\"probability\": 0.6, \"probability_reasoning\": \"r\"}\n```"
	p, err := ValidateDecision("alpha", 100, blob)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, p.Probability, 1e-9)
}

func TestValidateDecisionRejections(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"invalid json", `{not json`},
		{"missing probability", `{"probability_reasoning": "r"}`},
		{"probability above percent range", `{"probability": 250, "probability_reasoning": "r"}`},
		{"negative probability", `{"probability": -0.2, "probability_reasoning": "r"}`},
		{"missing reasoning", `{"probability": 0.6}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateDecision("alpha", 100, tc.blob)
			var se *apperrors.SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "alpha", se.FirmName)
		})
	}
}
