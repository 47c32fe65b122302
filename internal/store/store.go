// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/Shilder25/opinion-arena/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Tx runs fn inside a transaction. Calls nest: an inner Tx joins the
	// outer transaction, and commit or rollback happens only at the
	// outermost frame.
	Tx(ctx context.Context, fn func(ctx context.Context) error) error

	// Portfolios
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, firmName string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, p *models.Portfolio) error

	// Markets
	UpsertMarket(ctx context.Context, m *models.Market) error
	GetMarket(ctx context.Context, marketID int64) (*models.Market, error)

	// Predictions
	SavePrediction(ctx context.Context, p *models.Prediction) error
	GetPredictions(ctx context.Context, filter PredictionFilter) ([]models.Prediction, error)
	HasPredictionForDay(ctx context.Context, firmName string, marketID int64, day string) (bool, error)

	// Bets
	CreateBet(ctx context.Context, b *models.Bet) error
	GetBet(ctx context.Context, id string) (*models.Bet, error)
	GetBets(ctx context.Context, filter BetFilter) ([]models.Bet, error)
	UpdateBetStatus(ctx context.Context, id string, to models.BetStatus, orderID, errText string) error
	UpdateBetStrikes(ctx context.Context, id string, strikes int) error
	SetBetResult(ctx context.Context, id string, actualResult int, profitLoss float64) error
	GetCategoryExposure(ctx context.Context, firmName, category string) (float64, error)
	AppendBetReview(ctx context.Context, id string, review models.OrderReview) error
	GetBetReviews(ctx context.Context, id string) ([]models.OrderReview, error)

	// Daily counters
	GetDailyCounter(ctx context.Context, firmName, day string) (*models.DailyCounter, error)
	AddDailySpend(ctx context.Context, firmName, day string, amount float64) error
	RefundDailySpend(ctx context.Context, firmName, day string, amount float64) error
	AddDailyLoss(ctx context.Context, firmName, day string, loss float64) error

	// Cycles
	CreateCycle(ctx context.Context, c *models.CycleRecord) error
	UpdateCycle(ctx context.Context, c *models.CycleRecord) error
	GetCycles(ctx context.Context, limit int) ([]models.CycleRecord, error)

	// Cancelled orders
	SaveCancelledOrder(ctx context.Context, c *models.CancelledOrder) error
	GetCancelledOrders(ctx context.Context, limit int) ([]models.CancelledOrder, error)

	// Lifecycle
	Close() error
}

// PredictionFilter represents filters for querying predictions.
type PredictionFilter struct {
	FirmName  string
	MarketID  int64
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// BetFilter represents filters for querying bets.
type BetFilter struct {
	FirmName string
	MarketID int64
	Status   models.BetStatus
	Resolved *bool
	Limit    int
}
