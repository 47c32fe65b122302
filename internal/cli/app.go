package cli

import (
	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/agents"
	"github.com/Shilder25/opinion-arena/internal/collectors"
	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/cycle"
	"github.com/Shilder25/opinion-arena/internal/datacache"
	"github.com/Shilder25/opinion-arena/internal/engine"
	"github.com/Shilder25/opinion-arena/internal/market"
	"github.com/Shilder25/opinion-arena/internal/orders"
	"github.com/Shilder25/opinion-arena/internal/risk"
	"github.com/Shilder25/opinion-arena/internal/store"
	"github.com/Shilder25/opinion-arena/internal/venue"
)

// App holds the wired application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Store        store.DataStore
	Venue        *venue.Client
	Cache        *datacache.Cache
	Firms        []agents.Firm
	Assembler    *agents.Assembler
	Engine       *engine.Engine
	Guard        *risk.Guard
	Fetcher      *market.Fetcher
	Lifecycle    *orders.Lifecycle
	Monitor      *orders.Monitor
	Reconciler   *orders.Reconciler
	Orchestrator *cycle.Orchestrator
}

// build wires the full dependency graph. Called lazily by commands that
// need more than config, so `config validate` works without a database
// or API keys.
func (a *App) build() error {
	cfg := a.Config

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	a.Store = st

	a.Venue = venue.NewClient(cfg.Venue, a.Logger)
	a.Cache = datacache.New()

	set := collectors.NewSet(a.Cache, a.Logger,
		collectors.NewTechnicalCollector(a.Venue),
		collectors.NewNewsCollector(cfg.Collector.NewsBaseURL, cfg.Collector.NewsAPIKey, cfg.Collector.Timeout),
		collectors.NewSentimentCollector(cfg.Collector.SentimentBaseURL, cfg.Collector.SentimentAPIKey, cfg.Collector.Timeout),
		collectors.NewFundamentalCollector(),
		collectors.NewVolatilityCollector(a.Venue),
	)
	a.Assembler = agents.NewAssembler(set, a.Logger)

	a.Firms, err = agents.BuildFirms(cfg.Firms)
	if err != nil {
		return err
	}

	a.Engine = engine.New(cfg.Engine, a.Venue, a.Logger)
	a.Guard = risk.NewGuard(cfg.Risk, cfg.Bankroll, cfg.Engine.MinBet, st, a.Logger)
	a.Fetcher = market.NewFetcher(a.Venue, cfg.Cycle.PageSize, cfg.Cycle.MaxMarkets, a.Logger)
	a.Lifecycle = orders.NewLifecycle(st, a.Venue, a.Logger)
	a.Monitor = orders.NewMonitor(cfg.Monitor, st, a.Venue, a.Assembler, a.Firms, a.Logger)
	a.Reconciler = orders.NewReconciler(st, a.Venue, cfg.Engine.FeeRate, a.Logger)

	a.Orchestrator = cycle.New(cfg.Cycle, cfg.System.Enabled, cycle.Deps{
		Store:      st,
		Venue:      a.Venue,
		Fetcher:    a.Fetcher,
		Assembler:  a.Assembler,
		Engine:     a.Engine,
		Guard:      a.Guard,
		Lifecycle:  a.Lifecycle,
		Reconciler: a.Reconciler,
		Cache:      a.Cache,
		Firms:      a.Firms,
		Logger:     a.Logger,
	})
	return nil
}

// close releases held resources.
func (a *App) close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Store close failed")
		}
	}
}
