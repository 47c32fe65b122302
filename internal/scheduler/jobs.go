package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/cycle"
	"github.com/Shilder25/opinion-arena/internal/orders"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// CycleJob runs the daily trading cycle.
type CycleJob struct {
	Orchestrator *cycle.Orchestrator
}

func (j *CycleJob) Name() string { return "trading-cycle" }

func (j *CycleJob) Run(ctx context.Context) error {
	_, err := j.Orchestrator.Run(ctx)
	return err
}

// MonitorJob runs the open-order 3-strike review.
type MonitorJob struct {
	Monitor *orders.Monitor
}

func (j *MonitorJob) Name() string { return "order-monitor" }

func (j *MonitorJob) Run(ctx context.Context) error {
	_, err := j.Monitor.Run(ctx)
	return err
}

// StatusJob logs a portfolio snapshot at UTC midnight, right after the
// daily counters roll over, so each trading day opens with an auditable
// baseline in the log.
type StatusJob struct {
	Store  store.DataStore
	Logger zerolog.Logger
}

func (j *StatusJob) Name() string { return "daily-status" }

func (j *StatusJob) Run(ctx context.Context) error {
	pfs, err := j.Store.ListPortfolios(ctx)
	if err != nil {
		return err
	}
	for i := range pfs {
		pf := &pfs[i]
		j.Logger.Info().
			Str("firm", pf.FirmName).
			Float64("balance", pf.Balance).
			Float64("return_pct", pf.ReturnPct()).
			Float64("win_rate_pct", pf.WinRate()).
			Int("total_bets", pf.TotalBets).
			Msg("Daily portfolio status")
	}
	return nil
}
