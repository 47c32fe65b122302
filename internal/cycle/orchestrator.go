// Package cycle implements the daily trading cycle: fetch, evaluate,
// size, approve, submit, reconcile, one firm at a time.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/agents"
	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/datacache"
	"github.com/Shilder25/opinion-arena/internal/engine"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/logging"
	"github.com/Shilder25/opinion-arena/internal/market"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/orders"
	"github.com/Shilder25/opinion-arena/internal/risk"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// Skip reasons recorded on predictions that produced no bet.
const (
	skipAlreadyEvaluated = "already_evaluated_today"
	skipNoOrderbook      = "no_orderbook"
	skipStrategyDeclined = "strategy_declined"
	skipNegativeEV       = "negative_ev"
	skipModelFailure     = "model_failure"
)

type tradingAPI interface {
	EnableTrading(ctx context.Context) error
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Store      store.DataStore
	Venue      tradingAPI
	Fetcher    *market.Fetcher
	Assembler  *agents.Assembler
	Engine     *engine.Engine
	Guard      *risk.Guard
	Lifecycle  *orders.Lifecycle
	Reconciler *orders.Reconciler
	Cache      *datacache.Cache
	Firms      []agents.Firm
	Logger     zerolog.Logger
}

// Orchestrator runs one complete trading cycle. Firms trade strictly in
// sequence, in registration order, so a slow model never starves the
// others of their evaluated markets, only of wall clock.
type Orchestrator struct {
	cfg     config.CycleConfig
	enabled bool
	deps    Deps
}

// New creates an orchestrator.
func New(cfg config.CycleConfig, systemEnabled bool, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, enabled: systemEnabled, deps: deps}
}

// Result summarises one cycle run.
type Result struct {
	Cycle       *models.CycleRecord     `json:"cycle"`
	SkipReasons map[string]int          `json:"skip_reasons"`
	Reconciled  orders.ReconcileSummary `json:"reconciled"`
}

// Run executes a full cycle. The deadline is soft: the pair being
// evaluated when it expires always finishes, then the cycle stops and
// records PARTIAL. A run with the system disabled fails immediately.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.enabled {
		return nil, apperrors.ErrSystemDisabled
	}

	started := time.Now().UTC()
	deadline := started.Add(o.cfg.Deadline)
	rec := &models.CycleRecord{
		ID:                uuid.NewString(),
		Status:            models.CycleRunning,
		StartedAt:         started,
		PerCategoryCounts: make(map[string]int),
	}
	if err := o.deps.Store.CreateCycle(ctx, rec); err != nil {
		return nil, err
	}
	res := &Result{Cycle: rec, SkipReasons: make(map[string]int)}
	clog := logging.WithCycle(o.deps.Logger, rec.ID)

	// Stale quotes from a previous cycle must never feed a prompt.
	o.deps.Cache.Reset()

	if err := o.deps.Venue.EnableTrading(ctx); err != nil {
		o.finish(ctx, rec, models.CycleFailed)
		return res, apperrors.Wrap(err, "enabling trading")
	}

	markets, stats, err := o.deps.Fetcher.FetchTradable(ctx)
	if err != nil {
		o.finish(ctx, rec, models.CycleFailed)
		return res, err
	}
	rec.MarketsFetched = stats.Fetched
	rec.MarketsTradable = stats.Tradable
	for reason, n := range stats.RejectsByReason {
		res.SkipReasons[reason] += n
	}

	for i := range markets {
		if err := o.deps.Store.UpsertMarket(ctx, &markets[i]); err != nil {
			o.finish(ctx, rec, models.CycleFailed)
			return res, err
		}
	}

	if o.cfg.MarketsPerFirm > 0 && len(markets) > o.cfg.MarketsPerFirm {
		markets = markets[:o.cfg.MarketsPerFirm]
	}

	partial := false
firms:
	for i := range o.deps.Firms {
		firm := &o.deps.Firms[i]
		log := logging.WithFirm(clog, firm.Name).With().
			Str("progress", fmt.Sprintf("[%d/%d]", i+1, len(o.deps.Firms))).
			Logger()
		log.Info().Msg("Firm turn started")

		for j := range markets {
			if time.Now().After(deadline) {
				log.Warn().Msg("Cycle deadline reached, stopping after current pair")
				partial = true
				break firms
			}
			if err := o.tradePair(ctx, firm, &markets[j], rec, res, log); err != nil {
				o.finish(ctx, rec, models.CycleFailed)
				return res, err
			}
		}
	}

	recSum, err := o.deps.Reconciler.Run(ctx)
	if err != nil {
		// Reconciliation failures leave the cycle usable; the next run
		// retries from venue state.
		clog.Error().Err(err).Msg("Reconciliation failed")
	}
	res.Reconciled = recSum

	status := models.CycleComplete
	if partial {
		status = models.CyclePartial
	}
	o.finish(ctx, rec, status)

	clog.Info().
		Str("status", string(rec.Status)).
		Int("tradable", rec.MarketsTradable).
		Int("approved", rec.BetsApproved).
		Int("executed", rec.BetsExecuted).
		Int("failed", rec.BetsFailed).
		Msg("Cycle finished")
	return res, nil
}

// tradePair runs one (firm, market) evaluation end to end. Every
// evaluated pair leaves a prediction row; pairs that produce no bet
// carry the skip reason instead.
func (o *Orchestrator) tradePair(ctx context.Context, firm *agents.Firm, m *models.Market, rec *models.CycleRecord, res *Result, log zerolog.Logger) error {
	log = logging.WithMarket(log, m.MarketID)
	day := risk.Today()
	seen, err := o.deps.Store.HasPredictionForDay(ctx, firm.Name, m.MarketID, day)
	if err != nil {
		return err
	}
	if seen {
		res.SkipReasons[skipAlreadyEvaluated]++
		return nil
	}

	pred, err := o.deps.Assembler.Evaluate(ctx, firm, m)
	if err != nil {
		// Model or schema failures skip the pair, not the cycle.
		log.Warn().Err(err).Msg("Evaluation failed, pair skipped")
		res.SkipReasons[skipModelFailure]++
		return o.deps.Store.SavePrediction(ctx, &models.Prediction{
			ID:         uuid.NewString(),
			FirmName:   firm.Name,
			MarketID:   m.MarketID,
			SkipReason: skipModelFailure,
			CreatedAt:  time.Now().UTC(),
		})
	}

	logging.LogDecision(log, firm.Name, m.MarketID, pred.Probability, pred.Confidence, pred.ProbabilityReasoning)

	bet, pf, skipReason, err := o.decide(ctx, firm, m, pred, log)
	if err != nil {
		return err
	}
	pred.SkipReason = skipReason
	if err := o.deps.Store.SavePrediction(ctx, pred); err != nil {
		return err
	}
	if skipReason != "" {
		res.SkipReasons[skipReason]++
		logging.LogSkip(log, firm.Name, m.MarketID, skipReason)
		return nil
	}

	rec.BetsApproved++
	if err := o.deps.Lifecycle.Submit(ctx, bet, pf); err != nil {
		if apperrors.IsTransient(err) {
			return err
		}
		rec.BetsFailed++
		return nil
	}
	rec.BetsExecuted++
	rec.PerCategoryCounts[m.Category]++
	return nil
}

// decide sizes and gates one prediction. A nil bet with a reason means
// skip; an error aborts the pair.
func (o *Orchestrator) decide(ctx context.Context, firm *agents.Firm, m *models.Market, pred *models.Prediction, log zerolog.Logger) (*models.Bet, *models.Portfolio, string, error) {
	quote, err := o.deps.Engine.SelectSide(ctx, pred, m)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoOrderbook) {
			return nil, nil, skipNoOrderbook, nil
		}
		return nil, nil, "", err
	}

	pf, err := o.deps.Store.GetPortfolio(ctx, firm.Name)
	if err != nil {
		return nil, nil, "", err
	}

	desired := o.deps.Engine.DesiredSize(firm.Strategy, quote, pred.Confidence, pf)
	if desired <= 0 {
		return nil, nil, skipStrategyDeclined, nil
	}

	decision, err := o.deps.Guard.Approve(ctx, pf, m, desired)
	if err != nil {
		return nil, nil, "", err
	}
	if !decision.Allowed {
		return nil, nil, decision.Reason, nil
	}

	ev := o.deps.Engine.ComputeEV(decision.Size, quote)
	if ev.Net <= 0 {
		return nil, nil, skipNegativeEV, nil
	}

	log.Info().
		Str("side", quote.Side).
		Str("tier", decision.Tier).
		Float64("size", decision.Size).
		Float64("price", quote.Price).
		Float64("net_ev", ev.Net).
		Msg("Bet approved")

	return &models.Bet{
		ID:                 uuid.NewString(),
		PredictionID:       pred.ID,
		FirmName:           firm.Name,
		MarketID:           m.MarketID,
		TokenID:            quote.TokenID,
		Side:               quote.Side,
		Size:               decision.Size,
		LimitPrice:         quote.Price,
		Status:             models.BetApproved,
		ExecutionTimestamp: time.Now().UTC(),
		ExpectedValue:      ev.Net,
		CreatedAt:          time.Now().UTC(),
	}, pf, "", nil
}

func (o *Orchestrator) finish(ctx context.Context, rec *models.CycleRecord, status models.CycleStatus) {
	rec.Status = status
	rec.FinishedAt = time.Now().UTC()
	if err := o.deps.Store.UpdateCycle(ctx, rec); err != nil {
		o.deps.Logger.Error().Err(err).Str("cycle_id", rec.ID).Msg("Cycle record update failed")
	}
}
