package orders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/agents"
	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/logging"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// Monitor runs the periodic 3-strike review over open orders.
//
// Each pass evaluates three factors per SUBMITTED unresolved bet: a
// large move against the submission price, stagnation past the age
// limit, and a fresh re-evaluation by the owning firm landing on the
// opposite side of 0.5. Any tripped factor issues a strike; a clean
// review resets the counter, so only consecutive strikes cancel.
type Monitor struct {
	cfg       config.MonitorConfig
	store     store.DataStore
	venue     venueAPI
	assembler *agents.Assembler
	firms     map[string]*agents.Firm
	logger    zerolog.Logger
}

// NewMonitor creates an order monitor.
func NewMonitor(cfg config.MonitorConfig, st store.DataStore, v venueAPI, asm *agents.Assembler, firms []agents.Firm, logger zerolog.Logger) *Monitor {
	byName := make(map[string]*agents.Firm, len(firms))
	for i := range firms {
		byName[firms[i].Name] = &firms[i]
	}
	return &Monitor{cfg: cfg, store: st, venue: v, assembler: asm, firms: byName, logger: logger}
}

// Summary counts one monitor pass.
type Summary struct {
	Reviewed  int `json:"reviewed"`
	Skipped   int `json:"skipped"`
	Strikes   int `json:"strikes"`
	Resets    int `json:"resets"`
	Cancelled int `json:"cancelled"`
}

// Run reviews every open order once. Idempotent per review window: a
// bet whose latest review falls inside the configured interval is
// skipped, so a cron tick and a manual trigger landing in the same
// window cannot stack strikes on unchanged venue state.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	open, err := m.store.GetBets(ctx, store.BetFilter{
		Status:   models.BetSubmitted,
		Resolved: boolPtr(false),
	})
	if err != nil {
		return sum, err
	}

	for i := range open {
		bet := &open[i]

		if m.cfg.Interval > 0 {
			reviews, err := m.store.GetBetReviews(ctx, bet.ID)
			if err != nil {
				return sum, err
			}
			if n := len(reviews); n > 0 && time.Since(reviews[n-1].Timestamp) < m.cfg.Interval {
				sum.Skipped++
				continue
			}
		}
		sum.Reviewed++

		review, err := m.review(ctx, bet)
		if err != nil {
			m.logger.Warn().Err(err).Str("bet_id", bet.ID).Msg("Order review failed, skipping")
			continue
		}

		if err := m.store.AppendBetReview(ctx, bet.ID, *review); err != nil {
			return sum, err
		}

		if !review.StrikeIssued {
			if bet.ConsecutiveStrikes > 0 {
				if err := m.store.UpdateBetStrikes(ctx, bet.ID, 0); err != nil {
					return sum, err
				}
			}
			sum.Resets++
			continue
		}

		strikes := bet.ConsecutiveStrikes + 1
		sum.Strikes++
		logging.LogStrike(m.logger, bet.OrderID, strikes, review.Reason)

		if strikes < m.cfg.MaxStrikes {
			if err := m.store.UpdateBetStrikes(ctx, bet.ID, strikes); err != nil {
				return sum, err
			}
			continue
		}

		if err := m.cancel(ctx, bet, review.Reason); err != nil {
			m.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("Order cancellation failed")
			continue
		}
		sum.Cancelled++
	}
	return sum, nil
}

// review evaluates the three factors for one open bet. Every factor is
// evaluated and recorded on every review; the first tripped one, in
// price, age, contradiction order, names the strike.
func (m *Monitor) review(ctx context.Context, bet *models.Bet) (*models.OrderReview, error) {
	review := &models.OrderReview{Timestamp: time.Now().UTC()}

	book, err := m.venue.GetOrderbook(ctx, bet.TokenID)
	if err != nil {
		return nil, err
	}
	current := book.BestAsk()
	if current > 0 && bet.LimitPrice > 0 {
		review.PriceDeltaPct = math.Abs(current-bet.LimitPrice) / bet.LimitPrice * 100
	}

	submitted := bet.ExecutionTimestamp
	if submitted.IsZero() {
		submitted = bet.CreatedAt
	}
	review.AgeHours = time.Since(submitted).Hours()

	contradicts, err := m.aiContradicts(ctx, bet)
	if err != nil {
		m.logger.Warn().Err(err).Str("bet_id", bet.ID).Msg("Re-evaluation failed, factor skipped")
	}
	review.AIContradicts = contradicts

	switch {
	case review.PriceDeltaPct > m.cfg.PriceDeltaPct:
		review.StrikeIssued = true
		review.Reason = fmt.Sprintf("price moved %.1f%% against submission price %.3f", review.PriceDeltaPct, bet.LimitPrice)
	case review.AgeHours > m.cfg.MaxAge.Hours():
		review.StrikeIssued = true
		review.Reason = fmt.Sprintf("order stagnant for %.0f hours", review.AgeHours)
	case review.AIContradicts:
		review.StrikeIssued = true
		review.Reason = "fresh re-evaluation contradicts the original direction"
	}
	return review, nil
}

// aiContradicts re-runs the owning firm's evaluation and reports whether
// the fresh probability lands on the other side of 0.5.
func (m *Monitor) aiContradicts(ctx context.Context, bet *models.Bet) (bool, error) {
	firm, ok := m.firms[bet.FirmName]
	if !ok {
		return false, fmt.Errorf("unknown firm %s", bet.FirmName)
	}
	market, err := m.store.GetMarket(ctx, bet.MarketID)
	if err != nil || market == nil {
		return false, fmt.Errorf("market %d unavailable: %w", bet.MarketID, err)
	}
	pred, err := m.assembler.Evaluate(ctx, firm, market)
	if err != nil {
		return false, err
	}
	wantYes := bet.Side == "YES"
	freshYes := pred.Probability >= 0.5
	return wantYes != freshYes, nil
}

// cancel performs the 3rd-strike cancellation: venue cancel, history
// snapshot, the CANCELLED transition, and the stake refund in one
// transaction. The order never filled, so the stake returns to the
// bankroll.
func (m *Monitor) cancel(ctx context.Context, bet *models.Bet, reason string) error {
	if err := m.venue.CancelOrder(ctx, bet.OrderID); err != nil {
		return err
	}

	history, err := m.store.GetBetReviews(ctx, bet.ID)
	if err != nil {
		return err
	}

	return m.store.Tx(ctx, func(ctx context.Context) error {
		if err := m.store.SaveCancelledOrder(ctx, &models.CancelledOrder{
			OrderID:        bet.OrderID,
			FirmName:       bet.FirmName,
			MarketID:       bet.MarketID,
			StrikesHistory: history,
			CancelReason:   fmt.Sprintf("3 consecutive strikes; last: %s", reason),
			CancelledAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := m.store.UpdateBetStatus(ctx, bet.ID, models.BetCancelled, bet.OrderID, ""); err != nil {
			return err
		}
		pf, err := m.store.GetPortfolio(ctx, bet.FirmName)
		if err != nil {
			return err
		}
		pf.Balance += bet.Size
		pf.LastUpdate = time.Now().UTC()
		return m.store.UpdatePortfolio(ctx, pf)
	})
}

func boolPtr(b bool) *bool { return &b }
