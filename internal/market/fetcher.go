// Package market implements market discovery and tradability filtering.
package market

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

// venueAPI is the slice of the venue client the fetcher needs.
type venueAPI interface {
	GetMarkets(ctx context.Context, limit, offset int) ([]models.Market, error)
	GetMarket(ctx context.Context, marketID int64) (*models.Market, error)
	GetOrderbook(ctx context.Context, tokenID string) (*venue.Orderbook, error)
}

// Fetcher walks the venue's market pages and produces the tradable set.
type Fetcher struct {
	venue    venueAPI
	pageSize int
	maxCap   int
	logger   zerolog.Logger
}

// Stats summarises one fetch pass.
type Stats struct {
	Fetched         int
	Activated       int
	Tradable        int
	RejectsByReason map[string]int
}

// NewFetcher creates a market fetcher.
func NewFetcher(v venueAPI, pageSize, maxCap int, logger zerolog.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = 20
	}
	if maxCap <= 0 {
		maxCap = 200
	}
	return &Fetcher{venue: v, pageSize: pageSize, maxCap: maxCap, logger: logger}
}

// FetchTradable pages through the venue listing up to the cap, keeps only
// ACTIVATED markets, resolves token IDs via the detail endpoint, and
// applies the tradability invariant. A single market failing its detail
// or orderbook fetch is skipped with a logged reason; a page-walk failure
// aborts the whole pass.
func (f *Fetcher) FetchTradable(ctx context.Context) ([]models.Market, Stats, error) {
	stats := Stats{RejectsByReason: make(map[string]int)}

	var listed []models.Market
	for offset := 0; offset < f.maxCap; offset += f.pageSize {
		page, err := f.venue.GetMarkets(ctx, f.pageSize, offset)
		if err != nil {
			return nil, stats, apperrors.Wrap(err, "market page walk failed")
		}
		listed = append(listed, page...)
		if len(page) < f.pageSize {
			break
		}
	}
	if len(listed) > f.maxCap {
		listed = listed[:f.maxCap]
	}
	stats.Fetched = len(listed)

	var tradable []models.Market
	for i := range listed {
		m := listed[i]
		if m.Status != models.MarketActivated {
			stats.RejectsByReason["not_activated"]++
			continue
		}
		stats.Activated++

		// Listing rows omit token IDs; the detail endpoint has them.
		if m.YesTokenID == "" || m.NoTokenID == "" {
			detail, err := f.venue.GetMarket(ctx, m.MarketID)
			if err != nil {
				f.logger.Warn().Err(err).Int64("market_id", m.MarketID).Msg("Market detail fetch failed, skipping")
				stats.RejectsByReason["detail_unavailable"]++
				continue
			}
			m = *detail
		}

		if ok, reason := m.Tradable(); !ok {
			stats.RejectsByReason[reason]++
			continue
		}

		if !f.hasLiquidity(ctx, &m) {
			stats.RejectsByReason["no_liquidity"]++
			continue
		}

		tradable = append(tradable, m)
	}
	stats.Tradable = len(tradable)

	f.logger.Info().
		Int("fetched", stats.Fetched).
		Int("activated", stats.Activated).
		Int("tradable", stats.Tradable).
		Msg("Market fetch complete")
	return tradable, stats, nil
}

// hasLiquidity probes the YES book for a non-empty ask side. Token
// existence is checked by Tradable before any book call happens.
func (f *Fetcher) hasLiquidity(ctx context.Context, m *models.Market) bool {
	book, err := f.venue.GetOrderbook(ctx, m.YesTokenID)
	if err != nil {
		f.logger.Warn().Err(err).Int64("market_id", m.MarketID).Msg("Orderbook probe failed")
		return false
	}
	return book.BestAsk() > 0
}
