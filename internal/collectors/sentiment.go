package collectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// SentimentCollector queries a social-sentiment aggregator for crowd
// positioning on the market's topic.
type SentimentCollector struct {
	http   *resty.Client
	apiKey string
}

// NewSentimentCollector creates a sentiment collector.
func NewSentimentCollector(baseURL, apiKey string, timeout time.Duration) *SentimentCollector {
	return &SentimentCollector{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(2),
		apiKey: apiKey,
	}
}

// Area returns the analysis area.
func (c *SentimentCollector) Area() string { return AreaSentiment }

// Collect fetches the aggregate bullish/bearish split.
func (c *SentimentCollector) Collect(ctx context.Context, m *models.Market) (Report, error) {
	if c.apiKey == "" {
		return Report{}, apperrors.NewConfigError("SENTIMENT_API_KEY", "not set")
	}

	var result struct {
		Bullish  int `json:"bullish"`
		Bearish  int `json:"bearish"`
		Mentions int `json:"mentions"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetQueryParam("topic", m.Title).
		SetResult(&result).
		Get("/v1/sentiment")
	if err != nil {
		return Report{}, fmt.Errorf("sentiment fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Report{}, fmt.Errorf("sentiment fetch: status %d", resp.StatusCode())
	}

	total := result.Bullish + result.Bearish
	if total == 0 {
		return Report{
			Area:     AreaSentiment,
			Score:    NeutralScore,
			Analysis: "No social mentions found for this market.",
		}, nil
	}

	bullishRatio := float64(result.Bullish) / float64(total)
	return Report{
		Area:  AreaSentiment,
		Score: bullishRatio * 10,
		Analysis: fmt.Sprintf("%d mentions, %.0f%% bullish vs %.0f%% bearish.",
			result.Mentions, bullishRatio*100, (1-bullishRatio)*100),
	}, nil
}
