// Package risk implements the 4-tier adaptive risk guard. Every sized
// bet passes through the guard, which derives a tier from drawdown and
// may reduce the stake or veto it outright.
package risk

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// Tier names.
const (
	TierConservative = "CONSERVATIVE"
	TierDefensive    = "DEFENSIVE"
	TierRecovery     = "RECOVERY"
	TierEmergency    = "EMERGENCY"
	TierSuspended    = "SUSPENDED"
)

// Rejection reason tags, persisted as skip rationale.
const (
	ReasonTierSuspended     = "tier_suspended"
	ReasonDailyBetCount     = "daily_bet_count_exceeded"
	ReasonDailySpend        = "daily_spend_exceeded"
	ReasonDailyLossCap      = "daily_loss_cap_hit"
	ReasonCategoryExposure  = "category_exposure_cap"
	ReasonInsufficientFunds = "insufficient_balance"
	ReasonBelowMinimum      = "below_minimum"
)

// Guard gates sized bets against the adaptive tier table and the daily
// counters.
type Guard struct {
	cfg      config.RiskConfig
	bankroll config.BankrollConfig
	minBet   float64
	store    store.DataStore
	logger   zerolog.Logger
}

// NewGuard creates a risk guard.
func NewGuard(cfg config.RiskConfig, bankroll config.BankrollConfig, minBet float64, st store.DataStore, logger zerolog.Logger) *Guard {
	return &Guard{cfg: cfg, bankroll: bankroll, minBet: minBet, store: st, logger: logger}
}

// Decision is the guard's verdict on one candidate bet.
type Decision struct {
	Allowed bool
	Size    float64
	Tier    string
	Reason  string // rejection tag when not allowed
	Reduced bool
}

// TierFor maps a bankroll ratio to its tier. Lower bounds are inclusive.
func (g *Guard) TierFor(pf *models.Portfolio) (string, config.TierConfig) {
	if pf.InitialBalance <= 0 {
		return TierSuspended, config.TierConfig{}
	}
	ratio := pf.Balance / pf.InitialBalance
	switch {
	case ratio >= g.cfg.Conservative.MinRatio:
		return TierConservative, g.cfg.Conservative
	case ratio >= g.cfg.Defensive.MinRatio:
		return TierDefensive, g.cfg.Defensive
	case ratio >= g.cfg.Recovery.MinRatio:
		return TierRecovery, g.cfg.Recovery
	case ratio >= g.cfg.Emergency.MinRatio:
		return TierEmergency, g.cfg.Emergency
	default:
		return TierSuspended, config.TierConfig{}
	}
}

// Today returns the current UTC calendar day key. Counters key on this,
// which gives the lazy midnight rollover for free.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// Approve gates a desired stake. It may reduce the size to the tier's
// per-bet cap; a reduction that lands below the floor becomes a veto.
// The 1.50 floor overrides the percentage cap but never the available
// balance.
func (g *Guard) Approve(ctx context.Context, pf *models.Portfolio, m *models.Market, desired float64) (*Decision, error) {
	tier, limits := g.TierFor(pf)
	d := &Decision{Tier: tier}

	if tier == TierSuspended {
		d.Reason = ReasonTierSuspended
		return d, nil
	}

	counter, err := g.store.GetDailyCounter(ctx, pf.FirmName, Today())
	if err != nil {
		return nil, err
	}

	if counter.BetsCount >= limits.MaxDailyBets {
		d.Reason = ReasonDailyBetCount
		return d, nil
	}

	lossCap := pf.InitialBalance * limits.DailyLossPct / 100
	if counter.RealizedLoss >= lossCap {
		d.Reason = ReasonDailyLossCap
		return d, nil
	}

	size := desired
	cap := pf.Balance * limits.MaxBetPct / 100
	if size > cap {
		size = cap
		d.Reduced = true
	}

	// Floor beats the percentage cap, never the balance.
	if size < g.minBet {
		if g.minBet > pf.Balance {
			d.Reason = ReasonBelowMinimum
			return d, nil
		}
		size = g.minBet
		d.Reduced = true
	}

	if size > pf.Balance {
		d.Reason = ReasonInsufficientFunds
		return d, nil
	}

	if g.bankroll.DailySpendCap > 0 {
		remaining := g.bankroll.DailySpendCap - counter.Spent
		if remaining < g.minBet {
			d.Reason = ReasonDailySpend
			return d, nil
		}
		if size > remaining {
			size = remaining
			d.Reduced = true
		}
	}

	if g.cfg.MaxCategoryExposure > 0 && m.Category != "" {
		exposure, err := g.store.GetCategoryExposure(ctx, pf.FirmName, m.Category)
		if err != nil {
			return nil, err
		}
		if exposure+size > pf.Balance*g.cfg.MaxCategoryExposure/100 {
			d.Reason = ReasonCategoryExposure
			return d, nil
		}
	}

	d.Allowed = true
	d.Size = size
	if d.Reduced {
		g.logger.Info().
			Str("firm", pf.FirmName).
			Str("tier", tier).
			Float64("desired", desired).
			Float64("approved", size).
			Msg("Stake reduced by risk guard")
	}
	return d, nil
}
