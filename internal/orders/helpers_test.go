package orders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/store"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

// fakeVenue is a scriptable venueAPI for lifecycle, monitor, and
// reconciliation tests.
type fakeVenue struct {
	orderID   string
	placeErr  error
	placeHook func(req venue.OrderRequest) // runs before PlaceOrder returns
	placed    []venue.OrderRequest

	cancelErr error
	cancelled []string

	redeemErr error
	redeemed  []int64

	books   map[string]*venue.Orderbook
	bookErr error

	fills     []venue.Fill
	positions []venue.Position
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	if f.placeHook != nil {
		f.placeHook(req)
	}
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return "", f.placeErr
	}
	return f.orderID, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeVenue) Redeem(ctx context.Context, marketID int64) error {
	if f.redeemErr != nil {
		return f.redeemErr
	}
	f.redeemed = append(f.redeemed, marketID)
	return nil
}

func (f *fakeVenue) GetOrderbook(ctx context.Context, tokenID string) (*venue.Orderbook, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	book, ok := f.books[tokenID]
	if !ok {
		return nil, errors.New("no book")
	}
	return book, nil
}

func (f *fakeVenue) GetMyTrades(ctx context.Context) ([]venue.Fill, error) {
	return f.fills, nil
}

func (f *fakeVenue) GetMyPositions(ctx context.Context) ([]venue.Position, error) {
	return f.positions, nil
}

func newOrdersTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seedFirm creates a portfolio, a market, a prediction, and an APPROVED
// bet ready for submission.
func seedFirm(t *testing.T, st *store.SQLiteStore, firm string, balance float64) {
	t.Helper()
	require.NoError(t, st.CreatePortfolio(context.Background(), &models.Portfolio{
		FirmName:       firm,
		Balance:        balance,
		InitialBalance: balance,
		PeakBalance:    balance,
		LastUpdate:     time.Now().UTC(),
	}))
}

func seedApprovedBet(t *testing.T, st *store.SQLiteStore, id, firm string, size, price float64) *models.Bet {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.UpsertMarket(ctx, &models.Market{
		MarketID: 100, Title: "BTC above 100k", Category: models.CategoryCrypto,
		Status: models.MarketActivated, YesTokenID: "tok-yes", NoTokenID: "tok-no",
	}))
	require.NoError(t, st.SavePrediction(ctx, &models.Prediction{
		ID: "pred-" + id, FirmName: firm, MarketID: 100,
		Probability: 0.65, Confidence: 7, CreatedAt: time.Now().UTC(),
	}))

	bet := &models.Bet{
		ID:            id,
		PredictionID:  "pred-" + id,
		FirmName:      firm,
		MarketID:      100,
		TokenID:       "tok-yes",
		Side:          "YES",
		Size:          size,
		LimitPrice:    price,
		Status:        models.BetApproved,
		ExpectedValue: 1.1,
		CreatedAt:     time.Now().UTC(),
	}
	return bet
}
