package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// Reconciler settles open bets against venue state: fills move
// SUBMITTED bets to FILLED, resolutions realise P/L into the portfolio
// and trigger on-chain redemption for wins.
type Reconciler struct {
	store   store.DataStore
	venue   venueAPI
	feeRate float64
	logger  zerolog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(st store.DataStore, v venueAPI, feeRate float64, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: st, venue: v, feeRate: feeRate, logger: logger}
}

// ReconcileSummary counts one reconciliation pass.
type ReconcileSummary struct {
	Filled          int `json:"filled"`
	Resolved        int `json:"resolved"`
	Redeemed        int `json:"redeemed"`
	RedeemsDeferred int `json:"redeems_deferred"`
}

// Run polls fills and resolutions and applies them. Idempotent: applied
// fills and set results are skipped on re-run.
func (r *Reconciler) Run(ctx context.Context) (ReconcileSummary, error) {
	var sum ReconcileSummary

	if err := r.applyFills(ctx, &sum); err != nil {
		return sum, err
	}
	if err := r.applyResolutions(ctx, &sum); err != nil {
		return sum, err
	}
	return sum, nil
}

func (r *Reconciler) applyFills(ctx context.Context, sum *ReconcileSummary) error {
	fills, err := r.venue.GetMyTrades(ctx)
	if err != nil {
		return apperrors.Wrap(err, "polling fills")
	}
	filledOrders := make(map[string]bool, len(fills))
	for _, f := range fills {
		filledOrders[f.OrderID] = true
	}

	open, err := r.store.GetBets(ctx, store.BetFilter{Status: models.BetSubmitted})
	if err != nil {
		return err
	}
	for i := range open {
		bet := &open[i]
		if bet.OrderID == "" || !filledOrders[bet.OrderID] {
			continue
		}
		err := r.store.Tx(ctx, func(ctx context.Context) error {
			return r.store.UpdateBetStatus(ctx, bet.ID, models.BetFilled, bet.OrderID, "")
		})
		if err != nil {
			return err
		}
		sum.Filled++
	}
	return nil
}

func (r *Reconciler) applyResolutions(ctx context.Context, sum *ReconcileSummary) error {
	positions, err := r.venue.GetMyPositions(ctx)
	if err != nil {
		return apperrors.Wrap(err, "polling resolutions")
	}

	resolved := make(map[string]bool)
	for _, p := range positions {
		if p.Resolved {
			resolved[p.TokenID] = p.Won
		}
	}

	filled, err := r.store.GetBets(ctx, store.BetFilter{
		Status:   models.BetFilled,
		Resolved: boolPtr(false),
	})
	if err != nil {
		return err
	}

	for i := range filled {
		bet := &filled[i]
		won, ok := resolved[bet.TokenID]
		if !ok {
			continue
		}
		if err := r.settle(ctx, bet, won); err != nil {
			return err
		}
		sum.Resolved++

		if won {
			if err := r.redeem(ctx, bet.MarketID, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// settle realises one bet's outcome in a single transaction: result,
// portfolio balance, peak, streaks, aggregates, and the daily loss
// counter.
func (r *Reconciler) settle(ctx context.Context, bet *models.Bet, won bool) error {
	payout := bet.Size / bet.LimitPrice
	fee := payout * r.feeRate

	var profit float64
	if won {
		profit = payout - fee - bet.Size
	} else {
		profit = -bet.Size
	}

	return r.store.Tx(ctx, func(ctx context.Context) error {
		result := 0
		if won {
			result = 1
		}
		if err := r.store.SetBetResult(ctx, bet.ID, result, profit); err != nil {
			return err
		}

		pf, err := r.store.GetPortfolio(ctx, bet.FirmName)
		if err != nil {
			return err
		}

		// Stake left the balance at approval; a win credits the net
		// payout, a loss credits nothing.
		if won {
			pf.Balance += payout - fee
			pf.ConsecutiveWins++
			pf.ConsecutiveLosses = 0
			pf.WinningBets++
		} else {
			pf.ConsecutiveLosses++
			pf.ConsecutiveWins = 0
			if err := r.store.AddDailyLoss(ctx, bet.FirmName, todayKey(), bet.Size); err != nil {
				return err
			}
		}
		pf.TotalBets++
		pf.TotalProfit += profit
		if pf.Balance > pf.PeakBalance {
			pf.PeakBalance = pf.Balance
		}
		pf.LastUpdate = time.Now().UTC()

		if err := r.store.UpdatePortfolio(ctx, pf); err != nil {
			return err
		}

		r.logger.Info().
			Str("firm", bet.FirmName).
			Int64("market_id", bet.MarketID).
			Bool("won", won).
			Float64("profit", profit).
			Float64("balance", pf.Balance).
			Msg("Bet settled")
		return nil
	})
}

// redeem claims the on-chain payout. Low gas defers with a warning; the
// next reconciliation retries.
func (r *Reconciler) redeem(ctx context.Context, marketID int64, sum *ReconcileSummary) error {
	err := r.venue.Redeem(ctx, marketID)
	if err == nil {
		sum.Redeemed++
		return nil
	}

	var ve *apperrors.VenueError
	if apperrors.As(err, &ve) && ve.Errno == apperrors.VenueErrLowGas {
		r.logger.Warn().Int64("market_id", marketID).Msg("Redemption deferred: custody wallet low on gas")
		sum.RedeemsDeferred++
		return nil
	}
	return apperrors.Wrapf(err, "redeeming market %d", marketID)
}

func todayKey() string {
	return time.Now().UTC().Format("2006-01-02")
}
