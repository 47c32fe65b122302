package market

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

type fakeListing struct {
	markets   []models.Market
	details   map[int64]*models.Market
	books     map[string]*venue.Orderbook
	listErr   error
	detailErr error
	pages     int
}

func (f *fakeListing) GetMarkets(ctx context.Context, limit, offset int) ([]models.Market, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.pages++
	if offset >= len(f.markets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.markets) {
		end = len(f.markets)
	}
	return f.markets[offset:end], nil
}

func (f *fakeListing) GetMarket(ctx context.Context, marketID int64) (*models.Market, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	detail, ok := f.details[marketID]
	if !ok {
		return nil, errors.New("no detail")
	}
	return detail, nil
}

func (f *fakeListing) GetOrderbook(ctx context.Context, tokenID string) (*venue.Orderbook, error) {
	book, ok := f.books[tokenID]
	if !ok {
		return nil, errors.New("no book")
	}
	return book, nil
}

func activated(id int64) models.Market {
	return models.Market{
		MarketID: id,
		Title:    fmt.Sprintf("market %d", id),
		Category: models.CategoryCrypto,
		Status:   models.MarketActivated,
	}
}

func detailed(id int64) *models.Market {
	m := activated(id)
	m.YesTokenID = fmt.Sprintf("y%d", id)
	m.NoTokenID = fmt.Sprintf("n%d", id)
	return &m
}

func liquidBook() *venue.Orderbook {
	return &venue.Orderbook{Asks: []venue.PriceLevel{{Price: 0.5, Size: 100}}}
}

func TestFetchTradable(t *testing.T) {
	resolved := activated(3)
	resolved.Status = models.MarketResolved
	sports := *detailed(4)
	sports.Category = models.CategorySports

	f := &fakeListing{
		markets: []models.Market{activated(1), activated(2), resolved, sports},
		details: map[int64]*models.Market{1: detailed(1), 2: detailed(2)},
		books: map[string]*venue.Orderbook{
			"y1": liquidBook(),
			"y2": {}, // no asks
			"y4": liquidBook(),
		},
	}
	fetcher := NewFetcher(f, 20, 200, zerolog.Nop())

	tradable, stats, err := fetcher.FetchTradable(context.Background())
	require.NoError(t, err)

	require.Len(t, tradable, 1)
	assert.Equal(t, int64(1), tradable[0].MarketID)
	assert.Equal(t, "y1", tradable[0].YesTokenID)

	assert.Equal(t, 4, stats.Fetched)
	assert.Equal(t, 3, stats.Activated)
	assert.Equal(t, 1, stats.Tradable)
	assert.Equal(t, 1, stats.RejectsByReason["not_activated"])
	assert.Equal(t, 1, stats.RejectsByReason["sports_category"])
	assert.Equal(t, 1, stats.RejectsByReason["no_liquidity"])
}

func TestFetchTradablePagination(t *testing.T) {
	var markets []models.Market
	details := map[int64]*models.Market{}
	books := map[string]*venue.Orderbook{}
	for i := int64(1); i <= 25; i++ {
		markets = append(markets, activated(i))
		details[i] = detailed(i)
		books[fmt.Sprintf("y%d", i)] = liquidBook()
	}

	f := &fakeListing{markets: markets, details: details, books: books}
	fetcher := NewFetcher(f, 10, 200, zerolog.Nop())

	tradable, stats, err := fetcher.FetchTradable(context.Background())
	require.NoError(t, err)
	assert.Len(t, tradable, 25)
	assert.Equal(t, 25, stats.Fetched)
	// A short page ends the walk: 10 + 10 + 5.
	assert.Equal(t, 3, f.pages)
}

func TestFetchTradableCap(t *testing.T) {
	var markets []models.Market
	details := map[int64]*models.Market{}
	books := map[string]*venue.Orderbook{}
	for i := int64(1); i <= 40; i++ {
		markets = append(markets, activated(i))
		details[i] = detailed(i)
		books[fmt.Sprintf("y%d", i)] = liquidBook()
	}

	f := &fakeListing{markets: markets, details: details, books: books}
	fetcher := NewFetcher(f, 10, 20, zerolog.Nop())

	_, stats, err := fetcher.FetchTradable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Fetched)
}

func TestFetchTradableDetailFailureSkipsMarket(t *testing.T) {
	f := &fakeListing{
		markets: []models.Market{activated(1), activated(2)},
		details: map[int64]*models.Market{2: detailed(2)},
		books:   map[string]*venue.Orderbook{"y2": liquidBook()},
	}
	fetcher := NewFetcher(f, 20, 200, zerolog.Nop())

	tradable, stats, err := fetcher.FetchTradable(context.Background())
	require.NoError(t, err)
	require.Len(t, tradable, 1)
	assert.Equal(t, int64(2), tradable[0].MarketID)
	assert.Equal(t, 1, stats.RejectsByReason["detail_unavailable"])
}

func TestFetchTradableListingFailureAborts(t *testing.T) {
	f := &fakeListing{listErr: errors.New("gateway down")}
	fetcher := NewFetcher(f, 20, 200, zerolog.Nop())

	_, _, err := fetcher.FetchTradable(context.Background())
	require.Error(t, err)
}

func TestFetchTradableSkipsDetailWhenTokensPresent(t *testing.T) {
	// Listing rows that already carry token IDs never hit the detail
	// endpoint.
	f := &fakeListing{
		markets:   []models.Market{*detailed(1)},
		detailErr: errors.New("should not be called"),
		books:     map[string]*venue.Orderbook{"y1": liquidBook()},
	}
	fetcher := NewFetcher(f, 20, 200, zerolog.Nop())

	tradable, _, err := fetcher.FetchTradable(context.Background())
	require.NoError(t, err)
	assert.Len(t, tradable, 1)
}
