// Package collectors gathers per-market analysis inputs from external
// sources. Collectors are best-effort: an upstream outage degrades to a
// neutral report instead of blocking the cycle.
package collectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/datacache"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// Analysis areas, one per collector.
const (
	AreaTechnical   = "technical"
	AreaNews        = "news"
	AreaSentiment   = "sentiment"
	AreaFundamental = "fundamental"
	AreaVolatility  = "volatility"
)

// NeutralScore is the midpoint score reported when a collector fails.
const NeutralScore = 5.0

// Report is one collector's contribution for one market.
type Report struct {
	Area     string
	Score    float64 // [0,10]
	Analysis string
	Degraded bool
}

// Collector produces a report for a market.
type Collector interface {
	Area() string
	Collect(ctx context.Context, m *models.Market) (Report, error)
}

// Set runs the full collector battery through the per-cycle cache.
type Set struct {
	collectors []Collector
	cache      *datacache.Cache
	logger     zerolog.Logger
}

// NewSet creates a collector set.
func NewSet(cache *datacache.Cache, logger zerolog.Logger, cs ...Collector) *Set {
	return &Set{collectors: cs, cache: cache, logger: logger}
}

// CollectAll returns one report per area. A failing collector yields a
// neutral report with the failure recorded in the analysis text.
func (s *Set) CollectAll(ctx context.Context, m *models.Market) map[string]Report {
	reports := make(map[string]Report, len(s.collectors))
	symbol := fmt.Sprintf("%d", m.MarketID)

	for _, c := range s.collectors {
		c := c
		v, err := s.cache.Get(ctx, symbol, c.Area(), func(ctx context.Context) (interface{}, error) {
			return c.Collect(ctx, m)
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("area", c.Area()).Int64("market_id", m.MarketID).Msg("Collector failed, using neutral report")
			reports[c.Area()] = neutral(c.Area(), err)
			continue
		}
		reports[c.Area()] = v.(Report)
	}
	return reports
}

func neutral(area string, err error) Report {
	return Report{
		Area:     area,
		Score:    NeutralScore,
		Analysis: fmt.Sprintf("Data unavailable (%v); neutral assumption applied.", err),
		Degraded: true,
	}
}
