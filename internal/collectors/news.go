package collectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// NewsCollector queries a headline-sentiment feed for recent coverage of
// the market's topic.
type NewsCollector struct {
	http   *resty.Client
	apiKey string
}

// NewNewsCollector creates a news collector.
func NewNewsCollector(baseURL, apiKey string, timeout time.Duration) *NewsCollector {
	return &NewsCollector{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(2),
		apiKey: apiKey,
	}
}

// Area returns the analysis area.
func (c *NewsCollector) Area() string { return AreaNews }

type newsArticle struct {
	Title     string  `json:"title"`
	Sentiment float64 `json:"sentiment"` // [-1,1]
}

// Collect fetches recent articles and maps average sentiment onto [0,10].
func (c *NewsCollector) Collect(ctx context.Context, m *models.Market) (Report, error) {
	if c.apiKey == "" {
		return Report{}, apperrors.NewConfigError("NEWS_API_KEY", "not set")
	}

	var result struct {
		Articles []newsArticle `json:"articles"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", m.Title).
		SetQueryParam("apiKey", c.apiKey).
		SetQueryParam("pageSize", "10").
		SetResult(&result).
		Get("/v2/everything")
	if err != nil {
		return Report{}, fmt.Errorf("news fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Report{}, fmt.Errorf("news fetch: status %d", resp.StatusCode())
	}

	if len(result.Articles) == 0 {
		return Report{
			Area:     AreaNews,
			Score:    NeutralScore,
			Analysis: "No recent coverage found for this market.",
		}, nil
	}

	var sum float64
	titles := make([]string, 0, 3)
	for i, a := range result.Articles {
		sum += a.Sentiment
		if i < 3 {
			titles = append(titles, a.Title)
		}
	}
	avg := sum / float64(len(result.Articles))

	// [-1,1] sentiment to [0,10] score
	score := (avg + 1) * 5

	return Report{
		Area:  AreaNews,
		Score: score,
		Analysis: fmt.Sprintf("%d recent articles, average sentiment %.2f. Top headlines: %s",
			len(result.Articles), avg, strings.Join(titles, "; ")),
	}, nil
}
