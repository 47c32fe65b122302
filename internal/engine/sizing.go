package engine

import (
	"math"

	"github.com/Shilder25/opinion-arena/internal/models"
)

// DesiredSize maps a quote and the firm's bankroll state to the stake
// its strategy wants, in quote currency, before risk clamping. A zero
// return means the strategy declines this market.
//
// p below is always the chosen side's win probability, so it sits in
// [0.5, 1] after side selection.
func (e *Engine) DesiredSize(strategy models.SizingStrategy, q *Quote, confidence float64, pf *models.Portfolio) float64 {
	var size float64
	switch strategy {
	case models.StrategyKellyConservative:
		size = e.kellyConservative(q, confidence, pf)
	case models.StrategyFixedFractional:
		size = e.fixedFractional(q, confidence, pf)
	case models.StrategyProportional:
		size = e.proportional(q, confidence, pf)
	case models.StrategyMartingaleModified:
		size = e.martingaleModified(q, pf)
	case models.StrategyAntiMartingale:
		size = e.antiMartingale(q, pf)
	default:
		size = e.fixedFractional(q, confidence, pf)
	}
	if size <= 0 {
		return 0
	}
	// Never above the bankroll; the floor check happens after risk
	// clamping so the guard sees the strategy's honest intent.
	return math.Min(size, pf.Balance)
}

// kellyConservative stakes a quarter of the full Kelly fraction, scaled
// by confidence. Odds come from the buy price: a share at c pays 1.
func (e *Engine) kellyConservative(q *Quote, confidence float64, pf *models.Portfolio) float64 {
	if q.PSide <= 0.5 {
		return 0
	}
	b := (1 - q.Price) / q.Price // net odds per unit staked
	if b <= 0 {
		return 0
	}
	kelly := (b*q.PSide - (1 - q.PSide)) / b
	if kelly <= 0 {
		return 0
	}
	fraction := kelly * e.cfg.KellyFraction * (confidence / 10)
	return pf.Balance * fraction
}

// fixedFractional stakes a flat bankroll fraction tiered by confidence:
// 2% at 8+, 1.5% at 7+, 1% at 6+, 0.5% below.
func (e *Engine) fixedFractional(q *Quote, confidence float64, pf *models.Portfolio) float64 {
	if q.PSide < 0.55 {
		return 0
	}
	var fraction float64
	switch {
	case confidence >= 8:
		fraction = 0.02
	case confidence >= 7:
		fraction = 0.015
	case confidence >= 6:
		fraction = 0.01
	default:
		fraction = 0.005
	}
	return pf.Balance * fraction
}

// proportional scales the stake with both edge and confidence.
func (e *Engine) proportional(q *Quote, confidence float64, pf *models.Portfolio) float64 {
	if q.PSide < 0.60 || confidence < 6 {
		return 0
	}
	probScore := (q.PSide - 0.5) * 2
	confScore := confidence / 10
	combined := (probScore + confScore) / 2

	fraction := 0.005 + combined*(e.cfg.ProportionalPct/100)
	return pf.Balance * fraction
}

// martingaleModified escalates the base stake 1.5x per consecutive
// loss, capped at 3 escalations, then resets to base.
func (e *Engine) martingaleModified(q *Quote, pf *models.Portfolio) float64 {
	if q.PSide < 0.55 {
		return 0
	}
	const baseFraction = 0.01
	fraction := baseFraction
	if pf.ConsecutiveLosses > 0 && pf.ConsecutiveLosses <= 3 {
		fraction = baseFraction * math.Pow(e.cfg.MartingaleBase, float64(pf.ConsecutiveLosses))
	}
	fraction = math.Min(fraction, baseFraction*e.cfg.MartingaleCap)
	return pf.Balance * fraction
}

// antiMartingale escalates 1.3x per consecutive win, capped at 3
// escalations, riding winning streaks instead of chasing losses.
func (e *Engine) antiMartingale(q *Quote, pf *models.Portfolio) float64 {
	if q.PSide < 0.60 {
		return 0
	}
	const baseFraction = 0.01
	fraction := baseFraction
	if pf.ConsecutiveWins > 0 && pf.ConsecutiveWins <= 3 {
		fraction = baseFraction * math.Pow(e.cfg.AntiMartingaleBase, float64(pf.ConsecutiveWins))
	}
	fraction = math.Min(fraction, baseFraction*e.cfg.AntiMartingaleCap)
	return pf.Balance * fraction
}
