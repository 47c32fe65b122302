// Package engine implements side selection, expected value, and bet
// sizing for validated predictions.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/config"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/venue"
	"github.com/Shilder25/opinion-arena/pkg/utils"
)

// Side names on the wire.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// defaultSpread stands in when only the bid side of a book is usable.
const defaultSpread = 0.01

type orderbookAPI interface {
	GetOrderbook(ctx context.Context, tokenID string) (*venue.Orderbook, error)
}

// Engine computes quotes, EV, and desired sizes.
type Engine struct {
	cfg    config.EngineConfig
	venue  orderbookAPI
	logger zerolog.Logger
}

// New creates an engine.
func New(cfg config.EngineConfig, v orderbookAPI, logger zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, venue: v, logger: logger}
}

// Quote is the chosen side with its executable buy price.
type Quote struct {
	Side    string
	TokenID string
	Price   float64 // (0,1), rounded to 3 decimals
	PSide   float64 // model probability of the chosen side winning
}

// SelectSide picks YES when p >= 0.5 (deterministic tie-break on YES),
// NO otherwise, and resolves the buy price for that side's token from
// the orderbook with retries and the ASK -> mid -> bid+spread fallback.
func (e *Engine) SelectSide(ctx context.Context, pred *models.Prediction, m *models.Market) (*Quote, error) {
	q := &Quote{}
	if pred.Probability >= 0.5 {
		q.Side = SideYes
		q.TokenID = m.YesTokenID
		q.PSide = pred.Probability
	} else {
		q.Side = SideNo
		q.TokenID = m.NoTokenID
		q.PSide = 1 - pred.Probability
	}

	price, err := e.buyPrice(ctx, q.TokenID)
	if err != nil {
		return nil, err
	}
	q.Price = utils.RoundPrice(price)
	return q, nil
}

// buyPrice probes the book up to 3 times with backoff, then resolves a
// price from the fetched book alone. The listing snapshot's quotes can
// be minutes stale by evaluation time, so they never enter the chain:
// best ask with resting depth, else the book midpoint when the ask is
// quoted empty, else bid plus one tick when the ask side is missing.
func (e *Engine) buyPrice(ctx context.Context, tokenID string) (float64, error) {
	cfg := utils.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.2,
	}
	book, err := utils.RetryWithResult(ctx, cfg, func() (*venue.Orderbook, error) {
		return e.venue.GetOrderbook(ctx, tokenID)
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("token_id", tokenID).Msg("Orderbook probes exhausted")
		return 0, apperrors.ErrNoOrderbook
	}

	ask, bid := book.BestAsk(), book.BestBid()
	switch {
	case ask > 0 && book.AskDepth() > 0:
		return ask, nil
	case ask > 0 && bid > 0:
		return (ask + bid) / 2, nil
	case bid > 0:
		return bid + defaultSpread, nil
	}
	return 0, apperrors.ErrNoOrderbook
}

// EV breaks down the expected value of a candidate bet.
type EV struct {
	Gross   float64
	FeeCost float64
	Net     float64
}

// ComputeEV evaluates a candidate stake at the quoted price. The win
// payout is size/price shares paying 1 each; the venue fee applies to
// the payout at win time only, never to the buy.
func (e *Engine) ComputeEV(size float64, q *Quote) EV {
	payout := size / q.Price
	gross := q.PSide*(payout-size) - (1-q.PSide)*size
	fee := q.PSide * payout * e.cfg.FeeRate
	return EV{
		Gross:   gross,
		FeeCost: fee,
		Net:     gross - fee,
	}
}

// MinBet returns the enforced bet floor.
func (e *Engine) MinBet() float64 {
	return e.cfg.MinBet
}
