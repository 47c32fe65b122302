// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// SizingStrategy identifies the bankroll strategy assigned to a firm.
type SizingStrategy string

const (
	StrategyKellyConservative  SizingStrategy = "KELLY_CONSERVATIVE"
	StrategyFixedFractional    SizingStrategy = "FIXED_FRACTIONAL"
	StrategyProportional       SizingStrategy = "PROPORTIONAL"
	StrategyMartingaleModified SizingStrategy = "MARTINGALE_MODIFIED"
	StrategyAntiMartingale     SizingStrategy = "ANTI_MARTINGALE"
)

// Firm is one of the five model-backed trading agents. Immutable after
// registration.
type Firm struct {
	Name     string
	ModelID  string
	ColorTag string
	Strategy SizingStrategy
}

// Portfolio tracks a firm's bankroll. One per firm, created at registration,
// mutated only by cycle results and reconciliation.
type Portfolio struct {
	FirmName          string
	Balance           float64
	InitialBalance    float64
	PeakBalance       float64
	ConsecutiveWins   int
	ConsecutiveLosses int
	TotalBets         int
	WinningBets       int
	TotalProfit       float64
	LastUpdate        time.Time
}

// WinRate returns the fraction of resolved bets won, in percent.
func (p *Portfolio) WinRate() float64 {
	if p.TotalBets == 0 {
		return 0
	}
	return float64(p.WinningBets) / float64(p.TotalBets) * 100
}

// ReturnPct returns total return relative to the initial bankroll, in percent.
func (p *Portfolio) ReturnPct() float64 {
	if p.InitialBalance <= 0 {
		return 0
	}
	return (p.Balance - p.InitialBalance) / p.InitialBalance * 100
}

// MarketStatus is the venue's market lifecycle state.
type MarketStatus string

const (
	MarketActivated MarketStatus = "ACTIVATED"
	MarketResolved  MarketStatus = "RESOLVED"
	MarketClosed    MarketStatus = "CLOSED"
	MarketCancelled MarketStatus = "CANCELLED"
)

// Market categories. Sports is excluded from trading by policy.
const (
	CategoryCrypto      = "Crypto"
	CategoryRates       = "Rates"
	CategoryCommodities = "Commodities"
	CategoryInflation   = "Inflation"
	CategoryEmployment  = "Employment"
	CategoryFinance     = "Finance"
	CategoryPolitics    = "Politics"
	CategorySports      = "Sports"
)

// Market is a binary market normalised from the venue.
type Market struct {
	MarketID       int64
	Title          string
	Category       string
	Status         MarketStatus
	YesTokenID     string
	NoTokenID      string
	AskPrice       float64
	BidPrice       float64
	Volume         float64
	ResolutionTime time.Time
}

// Tradable reports whether the market passes the tradability invariant.
// Orderbook liquidity is checked separately by the fetcher because it
// requires a venue call.
func (m *Market) Tradable() (bool, string) {
	switch {
	case m.Status == MarketResolved:
		return false, "resolved"
	case m.Status != MarketActivated:
		return false, "not_activated"
	case m.YesTokenID == "":
		return false, "no_yes_token_id"
	case m.NoTokenID == "":
		return false, "no_no_token_id"
	case m.Category == CategorySports:
		return false, "sports_category"
	}
	return true, ""
}

// Prediction is one firm's evaluation of one event. A prediction exists for
// every evaluated event, whether or not a bet followed.
type Prediction struct {
	ID                   string
	FirmName             string
	MarketID             int64
	Probability          float64 // [0,1]
	Confidence           float64 // [0,10]
	SentimentScore       float64 // [0,10]
	NewsScore            float64
	TechnicalScore       float64
	FundamentalScore     float64
	VolatilityScore      float64
	SentimentAnalysis    string
	NewsAnalysis         string
	TechnicalAnalysis    string
	FundamentalAnalysis  string
	VolatilityAnalysis   string
	ProbabilityReasoning string
	SkipReason           string // empty when a bet followed
	CreatedAt            time.Time
}

// BetStatus is the closed bet/order lifecycle state.
type BetStatus string

const (
	BetApproved  BetStatus = "APPROVED"
	BetSubmitted BetStatus = "SUBMITTED"
	BetFilled    BetStatus = "FILLED"
	BetFailed    BetStatus = "FAILED"
	BetCancelled BetStatus = "CANCELLED"
)

// betTransitions lists the allowed (from, to) pairs. FILLED and CANCELLED
// are terminal.
var betTransitions = map[BetStatus][]BetStatus{
	BetApproved:  {BetSubmitted, BetFailed},
	BetSubmitted: {BetFilled, BetFailed, BetCancelled},
}

// CanTransition reports whether a bet may move from one status to another.
func CanTransition(from, to BetStatus) bool {
	for _, next := range betTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Bet is one executed order intent. A row with status APPROVED is committed
// before any submission attempt.
type Bet struct {
	ID                 string
	PredictionID       string
	FirmName           string
	MarketID           int64
	TokenID            string
	Side               string // always BUY
	Size               float64
	LimitPrice         float64 // (0,1), 3 decimals
	Status             BetStatus
	OrderID            string
	Error              string
	ExecutionTimestamp time.Time
	ExpectedValue      float64
	ActualResult       *int // nil, 0 or 1
	ProfitLoss         float64
	ConsecutiveStrikes int
	CreatedAt          time.Time
}

// Resolved reports whether the bet outcome is known.
func (b *Bet) Resolved() bool {
	return b.ActualResult != nil
}

// DailyCounter aggregates one firm's activity for one UTC calendar day.
// Reset lazily on first access after the date advances.
type DailyCounter struct {
	FirmName     string
	Day          string // YYYY-MM-DD, UTC
	BetsCount    int
	Spent        float64
	RealizedLoss float64
}

// CycleStatus marks how a cycle run ended.
type CycleStatus string

const (
	CycleRunning  CycleStatus = "RUNNING"
	CycleComplete CycleStatus = "COMPLETE"
	CyclePartial  CycleStatus = "PARTIAL"
	CycleFailed   CycleStatus = "FAILED"
)

// CycleRecord summarises one orchestrator run.
type CycleRecord struct {
	ID                string
	Status            CycleStatus
	StartedAt         time.Time
	FinishedAt        time.Time
	MarketsFetched    int
	MarketsTradable   int
	BetsApproved      int
	BetsExecuted      int
	BetsFailed        int
	PerCategoryCounts map[string]int
}

// OrderReview is one monitor pass over one open order.
type OrderReview struct {
	Timestamp     time.Time `json:"timestamp"`
	PriceDeltaPct float64   `json:"price_delta_pct"`
	AgeHours      float64   `json:"age_hours"`
	AIContradicts bool      `json:"ai_contradicts"`
	StrikeIssued  bool      `json:"strike_issued"`
	Reason        string    `json:"reason,omitempty"`
}

// CancelledOrder records a 3-strike cancellation with its full review
// history.
type CancelledOrder struct {
	OrderID        string
	FirmName       string
	MarketID       int64
	StrikesHistory []OrderReview
	CancelReason   string
	CancelledAt    time.Time
}
