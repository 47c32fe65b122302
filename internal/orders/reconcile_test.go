package orders

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/risk"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

func TestReconcileAppliesFills(t *testing.T) {
	st := newOrdersTestStore(t)
	ctx := context.Background()
	seedFirm(t, st, "alpha", 500)
	bet := submitBet(t, st, "b1")
	other := submitBet(t, st, "b2")

	v := &fakeVenue{fills: []venue.Fill{
		{OrderID: "ord-b1", MarketID: 100, TokenID: "tok-yes", Price: 0.55, Amount: 10},
		{OrderID: "ord-unknown"},
	}}
	r := NewReconciler(st, v, 0.02, zerolog.Nop())

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Filled)
	assert.Equal(t, 0, sum.Resolved)

	got, err := st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BetFilled, got.Status)

	untouched, err := st.GetBet(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BetSubmitted, untouched.Status)
}

func TestReconcileSettlesWin(t *testing.T) {
	st := newOrdersTestStore(t)
	ctx := context.Background()
	seedFirm(t, st, "alpha", 490) // 10 already deducted at approval
	bet := submitBet(t, st, "b1")

	v := &fakeVenue{
		fills:     []venue.Fill{{OrderID: "ord-b1"}},
		positions: []venue.Position{{MarketID: 100, TokenID: "tok-yes", Resolved: true, Won: true}},
	}
	r := NewReconciler(st, v, 0.02, zerolog.Nop())

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Filled)
	assert.Equal(t, 1, sum.Resolved)
	assert.Equal(t, 1, sum.Redeemed)
	assert.Equal(t, []int64{100}, v.redeemed)

	// 10 at 0.55 buys 18.18 shares paying 1 each; 2% fee on the payout.
	payout := 10.0 / 0.55
	fee := payout * 0.02

	got, err := st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActualResult)
	assert.Equal(t, 1, *got.ActualResult)
	assert.InDelta(t, payout-fee-10, got.ProfitLoss, 1e-9)

	pf, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.InDelta(t, 490+payout-fee, pf.Balance, 1e-9)
	assert.Equal(t, 1, pf.ConsecutiveWins)
	assert.Equal(t, 0, pf.ConsecutiveLosses)
	assert.Equal(t, 1, pf.TotalBets)
	assert.Equal(t, 1, pf.WinningBets)
	assert.InDelta(t, payout-fee-10, pf.TotalProfit, 1e-9)
	assert.InDelta(t, pf.Balance, pf.PeakBalance, 1e-9)
}

func TestReconcileSettlesLoss(t *testing.T) {
	st := newOrdersTestStore(t)
	ctx := context.Background()
	seedFirm(t, st, "alpha", 490)
	bet := submitBet(t, st, "b1")

	v := &fakeVenue{
		fills:     []venue.Fill{{OrderID: "ord-b1"}},
		positions: []venue.Position{{MarketID: 100, TokenID: "tok-yes", Resolved: true, Won: false}},
	}
	r := NewReconciler(st, v, 0.02, zerolog.Nop())

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)
	assert.Equal(t, 0, sum.Redeemed)
	assert.Empty(t, v.redeemed)

	got, err := st.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActualResult)
	assert.Equal(t, 0, *got.ActualResult)
	assert.InDelta(t, -10, got.ProfitLoss, 1e-9)

	// A loss credits nothing: the stake left at approval.
	pf, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.InDelta(t, 490, pf.Balance, 1e-9)
	assert.Equal(t, 1, pf.ConsecutiveLosses)
	assert.Equal(t, 0, pf.ConsecutiveWins)
	assert.Equal(t, 1, pf.TotalBets)
	assert.Equal(t, 0, pf.WinningBets)

	counter, err := st.GetDailyCounter(ctx, "alpha", risk.Today())
	require.NoError(t, err)
	assert.InDelta(t, 10, counter.RealizedLoss, 1e-9)
}

func TestReconcileIdempotent(t *testing.T) {
	st := newOrdersTestStore(t)
	ctx := context.Background()
	seedFirm(t, st, "alpha", 490)
	submitBet(t, st, "b1")

	v := &fakeVenue{
		fills:     []venue.Fill{{OrderID: "ord-b1"}},
		positions: []venue.Position{{MarketID: 100, TokenID: "tok-yes", Resolved: true, Won: false}},
	}
	r := NewReconciler(st, v, 0.02, zerolog.Nop())

	_, err := r.Run(ctx)
	require.NoError(t, err)
	first, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)

	// A second pass over the same venue state changes nothing: the bet
	// is already resolved and drops out of both scans.
	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Filled)
	assert.Equal(t, 0, sum.Resolved)

	second, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, first.TotalBets, second.TotalBets)
	assert.InDelta(t, first.Balance, second.Balance, 1e-9)
}

func TestReconcileDefersRedeemOnLowGas(t *testing.T) {
	st := newOrdersTestStore(t)
	ctx := context.Background()
	seedFirm(t, st, "alpha", 490)
	submitBet(t, st, "b1")

	v := &fakeVenue{
		fills:     []venue.Fill{{OrderID: "ord-b1"}},
		positions: []venue.Position{{MarketID: 100, TokenID: "tok-yes", Resolved: true, Won: true}},
		redeemErr: apperrors.NewVenueError(apperrors.VenueErrLowGas, "redeem", "insufficient gas"),
	}
	r := NewReconciler(st, v, 0.02, zerolog.Nop())

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)
	assert.Equal(t, 0, sum.Redeemed)
	assert.Equal(t, 1, sum.RedeemsDeferred)

	// Settlement still lands; only the on-chain claim waits.
	pf, err := st.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, pf.WinningBets)
}
