package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testPortfolio(firm string) *models.Portfolio {
	return &models.Portfolio{
		FirmName:       firm,
		Balance:        500,
		InitialBalance: 500,
		PeakBalance:    500,
		LastUpdate:     time.Now().UTC(),
	}
}

// seedBet inserts a prediction and an APPROVED bet referencing it.
func seedBet(t *testing.T, st *SQLiteStore, id, firm string, marketID int64) *models.Bet {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.SavePrediction(ctx, &models.Prediction{
		ID:          "pred-" + id,
		FirmName:    firm,
		MarketID:    marketID,
		Probability: 0.62,
		Confidence:  7,
		CreatedAt:   time.Now().UTC(),
	}))

	bet := &models.Bet{
		ID:            id,
		PredictionID:  "pred-" + id,
		FirmName:      firm,
		MarketID:      marketID,
		TokenID:       "tok-yes",
		Side:          "YES",
		Size:          10,
		LimitPrice:    0.55,
		Status:        models.BetApproved,
		ExpectedValue: 1.2,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.CreateBet(ctx, bet))
	return bet
}

func TestPortfolioLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetPortfolio(ctx, "alpha")
	require.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)

	require.NoError(t, st.CreatePortfolio(ctx, testPortfolio("alpha")))

	// Primary key on firm_name rejects a second registration.
	err = st.CreatePortfolio(ctx, testPortfolio("alpha"))
	var ie *apperrors.IntegrityError
	require.ErrorAs(t, err, &ie)

	pf, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 500.0, pf.Balance)

	pf.Balance = 512.5
	pf.TotalBets = 3
	pf.WinningBets = 2
	pf.TotalProfit = 12.5
	pf.PeakBalance = 512.5
	require.NoError(t, st.UpdatePortfolio(ctx, pf))

	got, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 512.5, got.Balance)
	assert.Equal(t, 3, got.TotalBets)
	assert.Equal(t, 2, got.WinningBets)

	missing := testPortfolio("ghost")
	require.ErrorIs(t, st.UpdatePortfolio(ctx, missing), apperrors.ErrPortfolioNotFound)

	require.NoError(t, st.CreatePortfolio(ctx, testPortfolio("beta")))
	all, err := st.ListPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].FirmName)
	assert.Equal(t, "beta", all[1].FirmName)
}

func TestTxNestedJoinAndRollback(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Inner Tx joins the outer frame: the inner update sees the
	// uncommitted outer insert.
	err := st.Tx(ctx, func(ctx context.Context) error {
		if err := st.CreatePortfolio(ctx, testPortfolio("gamma")); err != nil {
			return err
		}
		return st.Tx(ctx, func(ctx context.Context) error {
			pf, err := st.GetPortfolio(ctx, "gamma")
			if err != nil {
				return err
			}
			pf.Balance = 450
			return st.UpdatePortfolio(ctx, pf)
		})
	})
	require.NoError(t, err)

	pf, err := st.GetPortfolio(ctx, "gamma")
	require.NoError(t, err)
	assert.Equal(t, 450.0, pf.Balance)

	// An inner error rolls back the whole outer frame.
	boom := errors.New("boom")
	err = st.Tx(ctx, func(ctx context.Context) error {
		if err := st.CreatePortfolio(ctx, testPortfolio("delta")); err != nil {
			return err
		}
		return st.Tx(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	_, err = st.GetPortfolio(ctx, "delta")
	require.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)
}

func TestCreateBetRequiresApproved(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bet := &models.Bet{
		ID:        "b1",
		FirmName:  "alpha",
		Status:    models.BetSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	err := st.CreateBet(ctx, bet)
	var ie *apperrors.IntegrityError
	require.ErrorAs(t, err, &ie)
}

func TestBetStatusTransitions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bet := seedBet(t, st, "b1", "alpha", 100)

	// APPROVED cannot jump straight to FILLED.
	err := st.UpdateBetStatus(ctx, bet.ID, models.BetFilled, "", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	require.NoError(t, st.UpdateBetStatus(ctx, bet.ID, models.BetSubmitted, "ord-1", ""))

	got, err := st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BetSubmitted, got.Status)
	assert.Equal(t, "ord-1", got.OrderID)
	assert.False(t, got.ExecutionTimestamp.IsZero())

	require.NoError(t, st.UpdateBetStatus(ctx, bet.ID, models.BetFilled, "ord-1", ""))

	// FILLED is terminal.
	err = st.UpdateBetStatus(ctx, bet.ID, models.BetCancelled, "ord-1", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	err = st.UpdateBetStatus(ctx, "missing", models.BetSubmitted, "", "")
	require.ErrorIs(t, err, apperrors.ErrBetNotFound)
}

func TestSetBetResultIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bet := seedBet(t, st, "b1", "alpha", 100)

	require.NoError(t, st.SetBetResult(ctx, bet.ID, 1, 7.5))

	got, err := st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActualResult)
	assert.Equal(t, 1, *got.ActualResult)
	assert.Equal(t, 7.5, got.ProfitLoss)

	// A second settlement attempt leaves the first outcome in place.
	require.NoError(t, st.SetBetResult(ctx, bet.ID, 0, -10))

	got, err = st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *got.ActualResult)
	assert.Equal(t, 7.5, got.ProfitLoss)
}

func TestGetBetsFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedBet(t, st, "b1", "alpha", 100)
	seedBet(t, st, "b2", "alpha", 101)
	seedBet(t, st, "b3", "beta", 100)

	require.NoError(t, st.UpdateBetStatus(ctx, a.ID, models.BetSubmitted, "ord-1", ""))

	submitted, err := st.GetBets(ctx, BetFilter{Status: models.BetSubmitted})
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, "b1", submitted[0].ID)

	alpha, err := st.GetBets(ctx, BetFilter{FirmName: "alpha"})
	require.NoError(t, err)
	assert.Len(t, alpha, 2)

	require.NoError(t, st.SetBetResult(ctx, "b2", 0, -10))
	unresolved, err := st.GetBets(ctx, BetFilter{FirmName: "alpha", Resolved: boolPointer(false)})
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "b1", unresolved[0].ID)
}

func boolPointer(b bool) *bool { return &b }

func TestDailyCounters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	day := "2026-08-24"

	// Missing row reads as zeros, which is the lazy midnight rollover.
	c, err := st.GetDailyCounter(ctx, "alpha", day)
	require.NoError(t, err)
	assert.Equal(t, 0, c.BetsCount)
	assert.Equal(t, 0.0, c.Spent)
	assert.Equal(t, 0.0, c.RealizedLoss)

	require.NoError(t, st.AddDailySpend(ctx, "alpha", day, 10))
	require.NoError(t, st.AddDailySpend(ctx, "alpha", day, 15))

	c, err = st.GetDailyCounter(ctx, "alpha", day)
	require.NoError(t, err)
	assert.Equal(t, 2, c.BetsCount)
	assert.Equal(t, 25.0, c.Spent)

	require.NoError(t, st.RefundDailySpend(ctx, "alpha", day, 15))
	c, err = st.GetDailyCounter(ctx, "alpha", day)
	require.NoError(t, err)
	assert.Equal(t, 1, c.BetsCount)
	assert.Equal(t, 10.0, c.Spent)

	// Refunds floor at zero rather than going negative.
	require.NoError(t, st.RefundDailySpend(ctx, "alpha", day, 100))
	require.NoError(t, st.RefundDailySpend(ctx, "alpha", day, 100))
	c, err = st.GetDailyCounter(ctx, "alpha", day)
	require.NoError(t, err)
	assert.Equal(t, 0, c.BetsCount)
	assert.Equal(t, 0.0, c.Spent)

	require.NoError(t, st.AddDailyLoss(ctx, "alpha", day, 8))
	require.NoError(t, st.AddDailyLoss(ctx, "alpha", day, 4))
	c, err = st.GetDailyCounter(ctx, "alpha", day)
	require.NoError(t, err)
	assert.Equal(t, 12.0, c.RealizedLoss)

	// Counters are per firm and per day.
	other, err := st.GetDailyCounter(ctx, "alpha", "2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, 0.0, other.RealizedLoss)
}

func TestCategoryExposure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertMarket(ctx, &models.Market{
		MarketID: 100, Title: "BTC above 100k", Category: models.CategoryCrypto,
		Status: models.MarketActivated, YesTokenID: "y", NoTokenID: "n",
	}))
	require.NoError(t, st.UpsertMarket(ctx, &models.Market{
		MarketID: 200, Title: "Fed cuts in September", Category: models.CategoryRates,
		Status: models.MarketActivated, YesTokenID: "y", NoTokenID: "n",
	}))

	// SUBMITTED and FILLED unresolved bets count; APPROVED and resolved
	// bets do not.
	b1 := seedBet(t, st, "b1", "alpha", 100)
	require.NoError(t, st.UpdateBetStatus(ctx, b1.ID, models.BetSubmitted, "ord-1", ""))

	b2 := seedBet(t, st, "b2", "alpha", 100)
	require.NoError(t, st.UpdateBetStatus(ctx, b2.ID, models.BetSubmitted, "ord-2", ""))
	require.NoError(t, st.UpdateBetStatus(ctx, b2.ID, models.BetFilled, "ord-2", ""))

	seedBet(t, st, "b3", "alpha", 100) // still APPROVED

	b4 := seedBet(t, st, "b4", "alpha", 100)
	require.NoError(t, st.UpdateBetStatus(ctx, b4.ID, models.BetSubmitted, "ord-4", ""))
	require.NoError(t, st.UpdateBetStatus(ctx, b4.ID, models.BetFilled, "ord-4", ""))
	require.NoError(t, st.SetBetResult(ctx, b4.ID, 1, 5))

	seedBet(t, st, "b5", "alpha", 200) // different category

	exposure, err := st.GetCategoryExposure(ctx, "alpha", models.CategoryCrypto)
	require.NoError(t, err)
	assert.Equal(t, 20.0, exposure)

	exposure, err = st.GetCategoryExposure(ctx, "beta", models.CategoryCrypto)
	require.NoError(t, err)
	assert.Equal(t, 0.0, exposure)
}

func TestBetReviews(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bet := seedBet(t, st, "b1", "alpha", 100)

	reviews, err := st.GetBetReviews(ctx, bet.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	first := models.OrderReview{
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		PriceDeltaPct: 18.2,
		StrikeIssued:  true,
		Reason:        "price moved 18.2% against submission price 0.550",
	}
	require.NoError(t, st.AppendBetReview(ctx, bet.ID, first))
	require.NoError(t, st.AppendBetReview(ctx, bet.ID, models.OrderReview{
		Timestamp: time.Now().UTC().Truncate(time.Second),
		AgeHours:  2,
	}))

	reviews, err = st.GetBetReviews(ctx, bet.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.True(t, reviews[0].StrikeIssued)
	assert.Equal(t, first.Reason, reviews[0].Reason)
	assert.False(t, reviews[1].StrikeIssued)

	_, err = st.GetBetReviews(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrBetNotFound)
	err = st.AppendBetReview(ctx, "missing", first)
	require.ErrorIs(t, err, apperrors.ErrBetNotFound)
}

func TestUpdateBetStrikes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bet := seedBet(t, st, "b1", "alpha", 100)

	require.NoError(t, st.UpdateBetStrikes(ctx, bet.ID, 2))
	got, err := st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConsecutiveStrikes)

	require.NoError(t, st.UpdateBetStrikes(ctx, bet.ID, 0))
	got, err = st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ConsecutiveStrikes)

	require.ErrorIs(t, st.UpdateBetStrikes(ctx, "missing", 1), apperrors.ErrBetNotFound)
}

func TestHasPredictionForDay(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	day := now.Format("2006-01-02")

	require.NoError(t, st.SavePrediction(ctx, &models.Prediction{
		ID: "p1", FirmName: "alpha", MarketID: 100,
		Probability: 0.6, Confidence: 7, CreatedAt: now,
	}))

	has, err := st.HasPredictionForDay(ctx, "alpha", 100, day)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = st.HasPredictionForDay(ctx, "alpha", 100, now.AddDate(0, 0, 1).Format("2006-01-02"))
	require.NoError(t, err)
	assert.False(t, has)

	has, err = st.HasPredictionForDay(ctx, "beta", 100, day)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = st.HasPredictionForDay(ctx, "alpha", 999, day)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMarketUpsertAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	m, err := st.GetMarket(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, m)

	in := &models.Market{
		MarketID: 42, Title: "ETH above 5k", Category: models.CategoryCrypto,
		Status: models.MarketActivated, YesTokenID: "y42", NoTokenID: "n42",
		AskPrice: 0.41, BidPrice: 0.39, Volume: 120000,
		ResolutionTime: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.UpsertMarket(ctx, in))

	got, err := st.GetMarket(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.AskPrice, got.AskPrice)

	in.Status = models.MarketResolved
	in.AskPrice = 0.99
	require.NoError(t, st.UpsertMarket(ctx, in))

	got, err = st.GetMarket(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.MarketResolved, got.Status)
	assert.Equal(t, 0.99, got.AskPrice)
}

func TestCycleRecords(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := &models.CycleRecord{
		ID:        "c1",
		Status:    models.CycleRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.CreateCycle(ctx, rec))

	rec.Status = models.CycleComplete
	rec.FinishedAt = rec.StartedAt.Add(10 * time.Minute)
	rec.MarketsFetched = 40
	rec.MarketsTradable = 25
	rec.BetsApproved = 6
	rec.BetsExecuted = 5
	rec.BetsFailed = 1
	rec.PerCategoryCounts = map[string]int{models.CategoryCrypto: 3, models.CategoryRates: 2}
	require.NoError(t, st.UpdateCycle(ctx, rec))

	require.NoError(t, st.CreateCycle(ctx, &models.CycleRecord{
		ID: "c2", Status: models.CycleRunning, StartedAt: rec.StartedAt.Add(time.Hour),
	}))

	cycles, err := st.GetCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "c2", cycles[0].ID)
	assert.Equal(t, models.CycleComplete, cycles[1].Status)
	assert.Equal(t, 3, cycles[1].PerCategoryCounts[models.CategoryCrypto])
	assert.Equal(t, 5, cycles[1].BetsExecuted)
}

func TestCancelledOrders(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	history := []models.OrderReview{
		{Timestamp: time.Now().UTC().Truncate(time.Second), StrikeIssued: true, Reason: "order stagnant for 169 hours"},
		{Timestamp: time.Now().UTC().Truncate(time.Second), StrikeIssued: true, AIContradicts: true, Reason: "fresh re-evaluation contradicts the original direction"},
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, st.SaveCancelledOrder(ctx, &models.CancelledOrder{
			OrderID:        fmt.Sprintf("ord-%d", i),
			FirmName:       "alpha",
			MarketID:       100,
			StrikesHistory: history,
			CancelReason:   "3 consecutive strikes; last: order stagnant",
			CancelledAt:    time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}))
	}

	orders, err := st.GetCancelledOrders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ord-2", orders[0].OrderID)
	require.Len(t, orders[0].StrikesHistory, 2)
	assert.True(t, orders[0].StrikesHistory[1].AIContradicts)
}
