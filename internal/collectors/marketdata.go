package collectors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

// orderbookAPI is the slice of the venue client the market-derived
// collectors need.
type orderbookAPI interface {
	GetOrderbook(ctx context.Context, tokenID string) (*venue.Orderbook, error)
}

// TechnicalCollector scores price structure from the live book: where
// the market prices the YES outcome and how one-sided the book is.
type TechnicalCollector struct {
	venue orderbookAPI
}

// NewTechnicalCollector creates a technical collector.
func NewTechnicalCollector(v orderbookAPI) *TechnicalCollector {
	return &TechnicalCollector{venue: v}
}

// Area returns the analysis area.
func (c *TechnicalCollector) Area() string { return AreaTechnical }

// Collect scores how decisively the book prices the YES outcome.
func (c *TechnicalCollector) Collect(ctx context.Context, m *models.Market) (Report, error) {
	book, err := c.venue.GetOrderbook(ctx, m.YesTokenID)
	if err != nil {
		return Report{}, fmt.Errorf("orderbook fetch: %w", err)
	}
	ask, bid := book.BestAsk(), book.BestBid()
	if ask == 0 {
		return Report{}, fmt.Errorf("empty ask side for token %s", m.YesTokenID)
	}
	mid := ask
	if bid > 0 {
		mid = (ask + bid) / 2
	}

	// Distance from the 0.5 coin-flip maps to conviction: a market at
	// 0.90 or 0.10 is pricing a near-certain outcome.
	conviction := math.Abs(mid-0.5) * 2 // [0,1]
	return Report{
		Area:  AreaTechnical,
		Score: conviction * 10,
		Analysis: fmt.Sprintf("YES mid %.3f (ask %.3f, bid %.3f); market conviction %.0f%%.",
			mid, ask, bid, conviction*100),
	}, nil
}

// FundamentalCollector scores market quality from its own metadata:
// traded volume and time remaining to resolution.
type FundamentalCollector struct{}

// NewFundamentalCollector creates a fundamental collector.
func NewFundamentalCollector() *FundamentalCollector {
	return &FundamentalCollector{}
}

// Area returns the analysis area.
func (c *FundamentalCollector) Area() string { return AreaFundamental }

// Collect scores volume depth and resolution horizon.
func (c *FundamentalCollector) Collect(ctx context.Context, m *models.Market) (Report, error) {
	// log10 volume: 100 -> 2, 1M -> 6; clamp to [0,10]
	volScore := 0.0
	if m.Volume > 1 {
		volScore = math.Min(math.Log10(m.Volume)*2, 10)
	}

	horizonScore := NeutralScore
	horizonText := "no resolution time published"
	if !m.ResolutionTime.IsZero() {
		days := time.Until(m.ResolutionTime).Hours() / 24
		switch {
		case days < 0:
			horizonScore = 0
			horizonText = "resolution time already passed"
		case days <= 30:
			horizonScore = 8
			horizonText = fmt.Sprintf("resolves in %.0f days", days)
		case days <= 90:
			horizonScore = 6
			horizonText = fmt.Sprintf("resolves in %.0f days", days)
		default:
			horizonScore = 3
			horizonText = fmt.Sprintf("long horizon, %.0f days out", days)
		}
	}

	score := (volScore + horizonScore) / 2
	return Report{
		Area:  AreaFundamental,
		Score: score,
		Analysis: fmt.Sprintf("Volume %.0f (depth score %.1f); %s. Category: %s.",
			m.Volume, volScore, horizonText, m.Category),
	}, nil
}

// VolatilityCollector scores price stability from the bid/ask spread.
// A wide spread signals a market still hunting for its price.
type VolatilityCollector struct {
	venue orderbookAPI
}

// NewVolatilityCollector creates a volatility collector.
func NewVolatilityCollector(v orderbookAPI) *VolatilityCollector {
	return &VolatilityCollector{venue: v}
}

// Area returns the analysis area.
func (c *VolatilityCollector) Area() string { return AreaVolatility }

// Collect maps the relative spread onto a stability score: 10 is a tight
// book, 0 is a gapped one.
func (c *VolatilityCollector) Collect(ctx context.Context, m *models.Market) (Report, error) {
	book, err := c.venue.GetOrderbook(ctx, m.YesTokenID)
	if err != nil {
		return Report{}, fmt.Errorf("orderbook fetch: %w", err)
	}
	ask, bid := book.BestAsk(), book.BestBid()
	if ask == 0 || bid == 0 {
		return Report{}, fmt.Errorf("one-sided book for token %s", m.YesTokenID)
	}

	mid := (ask + bid) / 2
	spreadPct := (ask - bid) / mid * 100
	score := math.Max(0, 10-spreadPct) // 10% spread or wider scores 0

	return Report{
		Area:  AreaVolatility,
		Score: score,
		Analysis: fmt.Sprintf("Spread %.3f-%.3f (%.1f%% of mid); stability score %.1f.",
			bid, ask, spreadPct, score),
	}, nil
}
