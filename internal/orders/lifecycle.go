// Package orders implements the bet lifecycle: submission against the
// venue, the 3-strike open-order monitor, and fill/resolution
// reconciliation.
package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/logging"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/risk"
	"github.com/Shilder25/opinion-arena/internal/store"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

// venueAPI is the slice of the venue client the lifecycle needs.
type venueAPI interface {
	PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	Redeem(ctx context.Context, marketID int64) error
	GetOrderbook(ctx context.Context, tokenID string) (*venue.Orderbook, error)
	GetMyTrades(ctx context.Context) ([]venue.Fill, error)
	GetMyPositions(ctx context.Context) ([]venue.Position, error)
}

// Lifecycle handles bet submission.
type Lifecycle struct {
	store  store.DataStore
	venue  venueAPI
	logger zerolog.Logger
}

// NewLifecycle creates a submission handler.
func NewLifecycle(st store.DataStore, v venueAPI, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{store: st, venue: v, logger: logger}
}

// Submit executes an approved bet against the venue.
//
// The APPROVED row, the balance deduction, and the daily counter are
// committed BEFORE the venue call, so a crash mid-submission leaves an
// auditable intent rather than a phantom log line. The venue call runs
// outside any transaction and is never interrupted by cancellation; a
// second transaction then records the outcome, refunding the stake on
// failure.
func (l *Lifecycle) Submit(ctx context.Context, bet *models.Bet, pf *models.Portfolio) error {
	day := risk.Today()

	err := l.store.Tx(ctx, func(ctx context.Context) error {
		if err := l.store.CreateBet(ctx, bet); err != nil {
			return err
		}
		if err := l.store.AddDailySpend(ctx, bet.FirmName, day, bet.Size); err != nil {
			return err
		}
		pf.Balance -= bet.Size
		pf.LastUpdate = time.Now().UTC()
		return l.store.UpdatePortfolio(ctx, pf)
	})
	if err != nil {
		return apperrors.Wrap(err, "committing approved bet")
	}

	// The submission must complete even if the cycle deadline fires.
	submitCtx := context.WithoutCancel(ctx)
	orderID, venueErr := l.venue.PlaceOrder(submitCtx, venue.OrderRequest{
		MarketID: bet.MarketID,
		TokenID:  bet.TokenID,
		Side:     bet.Side,
		Price:    bet.LimitPrice,
		Amount:   bet.Size,
	})

	if venueErr != nil {
		l.logger.Warn().Err(venueErr).Str("bet_id", bet.ID).Msg("Venue submission failed")
		failErr := l.store.Tx(submitCtx, func(ctx context.Context) error {
			if err := l.store.UpdateBetStatus(ctx, bet.ID, models.BetFailed, "", venueErr.Error()); err != nil {
				return err
			}
			if err := l.store.RefundDailySpend(ctx, bet.FirmName, day, bet.Size); err != nil {
				return err
			}
			pf.Balance += bet.Size
			pf.LastUpdate = time.Now().UTC()
			return l.store.UpdatePortfolio(ctx, pf)
		})
		if failErr != nil {
			return apperrors.Wrap(failErr, "recording failed submission")
		}
		bet.Status = models.BetFailed
		bet.Error = venueErr.Error()
		return venueErr
	}

	err = l.store.Tx(submitCtx, func(ctx context.Context) error {
		return l.store.UpdateBetStatus(ctx, bet.ID, models.BetSubmitted, orderID, "")
	})
	if err != nil {
		return apperrors.Wrap(err, "recording submitted bet")
	}
	bet.Status = models.BetSubmitted
	bet.OrderID = orderID

	logging.LogBet(logging.WithOrderID(l.logger, orderID), bet.FirmName, bet.MarketID, bet.Side, bet.Size, bet.LimitPrice)
	return nil
}
