package agents

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// Defaults applied to missing or invalid fields. The pipeline prefers a
// neutral prediction over dropping a firm's evaluation.
const (
	defaultScore       = 5.0
	defaultConfidence  = 5.0
	defaultProbability = 0.5
)

// rawDecision tolerates the looser typing models actually emit: numbers
// may arrive as JSON strings, and fields may be missing entirely.
type rawDecision struct {
	Probability          *flexFloat `json:"probability"`
	Confidence           *flexFloat `json:"confidence"`
	SentimentScore       *flexFloat `json:"sentiment_score"`
	NewsScore            *flexFloat `json:"news_score"`
	TechnicalScore       *flexFloat `json:"technical_score"`
	FundamentalScore     *flexFloat `json:"fundamental_score"`
	VolatilityScore      *flexFloat `json:"volatility_score"`
	SentimentAnalysis    string     `json:"sentiment_analysis"`
	NewsAnalysis         string     `json:"news_analysis"`
	TechnicalAnalysis    string     `json:"technical_analysis"`
	FundamentalAnalysis  string     `json:"fundamental_analysis"`
	VolatilityAnalysis   string     `json:"volatility_analysis"`
	ProbabilityReasoning string     `json:"probability_reasoning"`
}

// flexFloat unmarshals from a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// ValidateDecision parses a model's raw blob into a canonical Prediction.
// Probability values in (1,100] are read as percent. Missing area scores
// default to 5, out-of-range confidence defaults to 5. A blob that cannot
// yield a usable probability is rejected with SchemaError.
func ValidateDecision(firmName string, marketID int64, blob string) (*models.Prediction, error) {
	blob = stripFences(blob)

	var raw rawDecision
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, apperrors.NewSchemaError(firmName, "blob", truncate(blob, 120), "invalid JSON: "+err.Error())
	}

	if raw.Probability == nil {
		return nil, apperrors.NewSchemaError(firmName, "probability", nil, "missing")
	}
	prob := float64(*raw.Probability)
	if prob > 1 && prob <= 100 {
		prob /= 100
	}
	if prob < 0 || prob > 1 {
		return nil, apperrors.NewSchemaError(firmName, "probability", prob, "outside [0,1] after normalisation")
	}

	if raw.ProbabilityReasoning == "" {
		return nil, apperrors.NewSchemaError(firmName, "probability_reasoning", nil, "missing")
	}

	confidence := defaultConfidence
	if raw.Confidence != nil {
		c := float64(*raw.Confidence)
		// percent-scale confidence from models that answer 0-100
		if c > 10 && c <= 100 {
			c /= 10
		}
		if c >= 0 && c <= 10 {
			confidence = c
		}
	}

	p := &models.Prediction{
		ID:                   uuid.NewString(),
		FirmName:             firmName,
		MarketID:             marketID,
		Probability:          prob,
		Confidence:           confidence,
		SentimentScore:       scoreOrDefault(raw.SentimentScore),
		NewsScore:            scoreOrDefault(raw.NewsScore),
		TechnicalScore:       scoreOrDefault(raw.TechnicalScore),
		FundamentalScore:     scoreOrDefault(raw.FundamentalScore),
		VolatilityScore:      scoreOrDefault(raw.VolatilityScore),
		SentimentAnalysis:    textOrDefault(raw.SentimentAnalysis, "No sentiment analysis provided"),
		NewsAnalysis:         textOrDefault(raw.NewsAnalysis, "No news analysis provided"),
		TechnicalAnalysis:    textOrDefault(raw.TechnicalAnalysis, "No technical analysis provided"),
		FundamentalAnalysis:  textOrDefault(raw.FundamentalAnalysis, "No fundamental analysis provided"),
		VolatilityAnalysis:   textOrDefault(raw.VolatilityAnalysis, "No volatility analysis provided"),
		ProbabilityReasoning: raw.ProbabilityReasoning,
		CreatedAt:            time.Now().UTC(),
	}
	return p, nil
}

func scoreOrDefault(f *flexFloat) float64 {
	if f == nil {
		return defaultScore
	}
	v := float64(*f)
	if v < 0 || v > 10 {
		return defaultScore
	}
	return v
}

func textOrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
