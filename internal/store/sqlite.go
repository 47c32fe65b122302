// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Per-firm bankroll state
	CREATE TABLE IF NOT EXISTS portfolios (
		firm_name TEXT PRIMARY KEY,
		balance REAL NOT NULL,
		initial_balance REAL NOT NULL,
		peak_balance REAL NOT NULL,
		consecutive_wins INTEGER NOT NULL DEFAULT 0,
		consecutive_losses INTEGER NOT NULL DEFAULT 0,
		total_bets INTEGER NOT NULL DEFAULT 0,
		winning_bets INTEGER NOT NULL DEFAULT 0,
		total_profit REAL NOT NULL DEFAULT 0,
		last_update DATETIME NOT NULL
	);

	-- Markets as last seen from the venue
	CREATE TABLE IF NOT EXISTS markets (
		market_id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT,
		status TEXT NOT NULL,
		yes_token_id TEXT,
		no_token_id TEXT,
		ask_price REAL,
		bid_price REAL,
		volume REAL,
		resolution_time DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One prediction per evaluated (firm, market) pair
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		firm_name TEXT NOT NULL,
		market_id INTEGER NOT NULL,
		probability REAL NOT NULL,
		confidence REAL NOT NULL,
		sentiment_score REAL NOT NULL,
		news_score REAL NOT NULL,
		technical_score REAL NOT NULL,
		fundamental_score REAL NOT NULL,
		volatility_score REAL NOT NULL,
		sentiment_analysis TEXT,
		news_analysis TEXT,
		technical_analysis TEXT,
		fundamental_analysis TEXT,
		volatility_analysis TEXT,
		probability_reasoning TEXT,
		skip_reason TEXT,
		created_at DATETIME NOT NULL
	);

	-- Bets: one row per order intent, APPROVED before submission
	CREATE TABLE IF NOT EXISTS bets (
		id TEXT PRIMARY KEY,
		prediction_id TEXT NOT NULL,
		firm_name TEXT NOT NULL,
		market_id INTEGER NOT NULL,
		token_id TEXT NOT NULL,
		side TEXT NOT NULL,
		size REAL NOT NULL,
		limit_price REAL NOT NULL,
		status TEXT NOT NULL,
		order_id TEXT,
		error TEXT,
		execution_timestamp DATETIME,
		expected_value REAL NOT NULL,
		actual_result INTEGER,
		profit_loss REAL NOT NULL DEFAULT 0,
		consecutive_strikes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (prediction_id) REFERENCES predictions(id)
	);

	-- Per-firm per-UTC-day activity counters
	CREATE TABLE IF NOT EXISTS daily_counters (
		firm_name TEXT NOT NULL,
		day TEXT NOT NULL,
		bets_count INTEGER NOT NULL DEFAULT 0,
		spent REAL NOT NULL DEFAULT 0,
		realized_loss REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (firm_name, day)
	);

	-- Cycle run summaries
	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		markets_fetched INTEGER NOT NULL DEFAULT 0,
		markets_tradable INTEGER NOT NULL DEFAULT 0,
		bets_approved INTEGER NOT NULL DEFAULT 0,
		bets_executed INTEGER NOT NULL DEFAULT 0,
		bets_failed INTEGER NOT NULL DEFAULT 0,
		category_counts TEXT
	);

	-- Orders cancelled by the 3-strike monitor, with review history
	CREATE TABLE IF NOT EXISTS cancelled_orders (
		order_id TEXT PRIMARY KEY,
		firm_name TEXT NOT NULL,
		market_id INTEGER NOT NULL,
		strikes_history TEXT NOT NULL,
		cancel_reason TEXT NOT NULL,
		cancelled_at DATETIME NOT NULL
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_predictions_firm ON predictions(firm_name);
	CREATE INDEX IF NOT EXISTS idx_predictions_market ON predictions(market_id);
	CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
	CREATE INDEX IF NOT EXISTS idx_bets_firm ON bets(firm_name);
	CREATE INDEX IF NOT EXISTS idx_bets_status ON bets(status);
	CREATE INDEX IF NOT EXISTS idx_bets_market ON bets(market_id);
	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Transaction plumbing
// ============================================================================

type txKeyType struct{}

var txKey txKeyType

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// q returns the active transaction from the context, or the bare handle.
func (s *SQLiteStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// Tx runs fn inside a transaction. Nested calls join the ambient
// transaction; only the outermost frame commits or rolls back.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr("begin", err)
	}

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteErr("commit", err)
	}
	return nil
}

// mapSQLiteErr classifies driver errors into the domain taxonomy.
// Busy/locked is transient; constraint violations are integrity errors.
func mapSQLiteErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if apperrors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return apperrors.NewTransientError(operation, err)
		case sqlite3.ErrConstraint:
			return apperrors.NewIntegrityError(operation, "constraint violation", err)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// ============================================================================
// Portfolio Methods
// ============================================================================

// CreatePortfolio inserts a new portfolio row.
func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO portfolios (firm_name, balance, initial_balance, peak_balance, consecutive_wins, consecutive_losses, total_bets, winning_bets, total_profit, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.FirmName, p.Balance, p.InitialBalance, p.PeakBalance, p.ConsecutiveWins, p.ConsecutiveLosses, p.TotalBets, p.WinningBets, p.TotalProfit, p.LastUpdate)
	return mapSQLiteErr("create portfolio", err)
}

// GetPortfolio retrieves a firm's portfolio.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, firmName string) (*models.Portfolio, error) {
	var p models.Portfolio
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT firm_name, balance, initial_balance, peak_balance, consecutive_wins, consecutive_losses, total_bets, winning_bets, total_profit, last_update
		FROM portfolios WHERE firm_name = ?
	`, firmName).Scan(&p.FirmName, &p.Balance, &p.InitialBalance, &p.PeakBalance, &p.ConsecutiveWins, &p.ConsecutiveLosses, &p.TotalBets, &p.WinningBets, &p.TotalProfit, &p.LastUpdate)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, mapSQLiteErr("get portfolio", err)
	}
	return &p, nil
}

// ListPortfolios retrieves all portfolios ordered by firm name.
func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT firm_name, balance, initial_balance, peak_balance, consecutive_wins, consecutive_losses, total_bets, winning_bets, total_profit, last_update
		FROM portfolios ORDER BY firm_name ASC
	`)
	if err != nil {
		return nil, mapSQLiteErr("list portfolios", err)
	}
	defer rows.Close()

	var portfolios []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.FirmName, &p.Balance, &p.InitialBalance, &p.PeakBalance, &p.ConsecutiveWins, &p.ConsecutiveLosses, &p.TotalBets, &p.WinningBets, &p.TotalProfit, &p.LastUpdate); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// UpdatePortfolio persists a mutated portfolio.
func (s *SQLiteStore) UpdatePortfolio(ctx context.Context, p *models.Portfolio) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE portfolios
		SET balance = ?, peak_balance = ?, consecutive_wins = ?, consecutive_losses = ?, total_bets = ?, winning_bets = ?, total_profit = ?, last_update = ?
		WHERE firm_name = ?
	`, p.Balance, p.PeakBalance, p.ConsecutiveWins, p.ConsecutiveLosses, p.TotalBets, p.WinningBets, p.TotalProfit, p.LastUpdate, p.FirmName)
	if err != nil {
		return mapSQLiteErr("update portfolio", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}

// ============================================================================
// Market Methods
// ============================================================================

// UpsertMarket saves a market snapshot.
func (s *SQLiteStore) UpsertMarket(ctx context.Context, m *models.Market) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO markets (market_id, title, category, status, yes_token_id, no_token_id, ask_price, bid_price, volume, resolution_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(market_id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			status = excluded.status,
			yes_token_id = excluded.yes_token_id,
			no_token_id = excluded.no_token_id,
			ask_price = excluded.ask_price,
			bid_price = excluded.bid_price,
			volume = excluded.volume,
			resolution_time = excluded.resolution_time,
			updated_at = CURRENT_TIMESTAMP
	`, m.MarketID, m.Title, m.Category, string(m.Status), m.YesTokenID, m.NoTokenID, m.AskPrice, m.BidPrice, m.Volume, m.ResolutionTime)
	return mapSQLiteErr("upsert market", err)
}

// GetMarket retrieves a market snapshot by ID.
func (s *SQLiteStore) GetMarket(ctx context.Context, marketID int64) (*models.Market, error) {
	var m models.Market
	var status string
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT market_id, title, category, status, yes_token_id, no_token_id, ask_price, bid_price, volume, resolution_time
		FROM markets WHERE market_id = ?
	`, marketID).Scan(&m.MarketID, &m.Title, &m.Category, &status, &m.YesTokenID, &m.NoTokenID, &m.AskPrice, &m.BidPrice, &m.Volume, &m.ResolutionTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("get market", err)
	}
	m.Status = models.MarketStatus(status)
	return &m, nil
}

// ============================================================================
// Prediction Methods
// ============================================================================

// SavePrediction saves a firm's prediction for a market.
func (s *SQLiteStore) SavePrediction(ctx context.Context, p *models.Prediction) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO predictions (id, firm_name, market_id, probability, confidence, sentiment_score, news_score, technical_score, fundamental_score, volatility_score, sentiment_analysis, news_analysis, technical_analysis, fundamental_analysis, volatility_analysis, probability_reasoning, skip_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.FirmName, p.MarketID, p.Probability, p.Confidence, p.SentimentScore, p.NewsScore, p.TechnicalScore, p.FundamentalScore, p.VolatilityScore, p.SentimentAnalysis, p.NewsAnalysis, p.TechnicalAnalysis, p.FundamentalAnalysis, p.VolatilityAnalysis, p.ProbabilityReasoning, p.SkipReason, p.CreatedAt)
	return mapSQLiteErr("save prediction", err)
}

// GetPredictions retrieves predictions matching the filter, newest first.
func (s *SQLiteStore) GetPredictions(ctx context.Context, filter PredictionFilter) ([]models.Prediction, error) {
	query := `SELECT id, firm_name, market_id, probability, confidence, sentiment_score, news_score, technical_score, fundamental_score, volatility_score, sentiment_analysis, news_analysis, technical_analysis, fundamental_analysis, volatility_analysis, probability_reasoning, skip_reason, created_at FROM predictions WHERE 1=1`
	args := []interface{}{}

	if filter.FirmName != "" {
		query += " AND firm_name = ?"
		args = append(args, filter.FirmName)
	}
	if filter.MarketID != 0 {
		query += " AND market_id = ?"
		args = append(args, filter.MarketID)
	}
	if !filter.StartDate.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.EndDate)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr("get predictions", err)
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.ID, &p.FirmName, &p.MarketID, &p.Probability, &p.Confidence, &p.SentimentScore, &p.NewsScore, &p.TechnicalScore, &p.FundamentalScore, &p.VolatilityScore, &p.SentimentAnalysis, &p.NewsAnalysis, &p.TechnicalAnalysis, &p.FundamentalAnalysis, &p.VolatilityAnalysis, &p.ProbabilityReasoning, &p.SkipReason, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// HasPredictionForDay reports whether a firm already evaluated a market on
// the given UTC day. Used for same-day cycle dedup.
func (s *SQLiteStore) HasPredictionForDay(ctx context.Context, firmName string, marketID int64, day string) (bool, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(1) FROM predictions
		WHERE firm_name = ? AND market_id = ? AND date(created_at) = ?
	`, firmName, marketID, day).Scan(&n)
	if err != nil {
		return false, mapSQLiteErr("has prediction", err)
	}
	return n > 0, nil
}

// ============================================================================
// Bet Methods
// ============================================================================

// CreateBet inserts a bet. New bets must start APPROVED.
func (s *SQLiteStore) CreateBet(ctx context.Context, b *models.Bet) error {
	if b.Status != models.BetApproved {
		return apperrors.NewIntegrityError("bets", "new bets must start APPROVED", nil)
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO bets (id, prediction_id, firm_name, market_id, token_id, side, size, limit_price, status, order_id, error, execution_timestamp, expected_value, actual_result, profit_loss, consecutive_strikes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.PredictionID, b.FirmName, b.MarketID, b.TokenID, b.Side, b.Size, b.LimitPrice, string(b.Status), b.OrderID, b.Error, nullTime(b.ExecutionTimestamp), b.ExpectedValue, b.ActualResult, b.ProfitLoss, b.ConsecutiveStrikes, b.CreatedAt)
	return mapSQLiteErr("create bet", err)
}

// GetBet retrieves a bet by ID.
func (s *SQLiteStore) GetBet(ctx context.Context, id string) (*models.Bet, error) {
	b, err := s.scanBet(s.q(ctx).QueryRowContext(ctx, betSelect+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrBetNotFound
	}
	return b, err
}

const betSelect = `SELECT id, prediction_id, firm_name, market_id, token_id, side, size, limit_price, status, order_id, error, execution_timestamp, expected_value, actual_result, profit_loss, consecutive_strikes, created_at FROM bets`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanBet(row rowScanner) (*models.Bet, error) {
	var b models.Bet
	var status string
	var orderID, errText sql.NullString
	var execTS sql.NullTime
	var actual sql.NullInt64
	err := row.Scan(&b.ID, &b.PredictionID, &b.FirmName, &b.MarketID, &b.TokenID, &b.Side, &b.Size, &b.LimitPrice, &status, &orderID, &errText, &execTS, &b.ExpectedValue, &actual, &b.ProfitLoss, &b.ConsecutiveStrikes, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = models.BetStatus(status)
	b.OrderID = orderID.String
	b.Error = errText.String
	if execTS.Valid {
		b.ExecutionTimestamp = execTS.Time
	}
	if actual.Valid {
		v := int(actual.Int64)
		b.ActualResult = &v
	}
	return &b, nil
}

// GetBets retrieves bets matching the filter, newest first.
func (s *SQLiteStore) GetBets(ctx context.Context, filter BetFilter) ([]models.Bet, error) {
	query := betSelect + " WHERE 1=1"
	args := []interface{}{}

	if filter.FirmName != "" {
		query += " AND firm_name = ?"
		args = append(args, filter.FirmName)
	}
	if filter.MarketID != 0 {
		query += " AND market_id = ?"
		args = append(args, filter.MarketID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Resolved != nil {
		if *filter.Resolved {
			query += " AND actual_result IS NOT NULL"
		} else {
			query += " AND actual_result IS NULL"
		}
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr("get bets", err)
	}
	defer rows.Close()

	var bets []models.Bet
	for rows.Next() {
		b, err := s.scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

// UpdateBetStatus moves a bet through its lifecycle. The transition is
// validated against the allowed table inside one transaction.
func (s *SQLiteStore) UpdateBetStatus(ctx context.Context, id string, to models.BetStatus, orderID, errText string) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		b, err := s.GetBet(ctx, id)
		if err != nil {
			return err
		}
		if !models.CanTransition(b.Status, to) {
			return apperrors.NewIntegrityError("bets",
				fmt.Sprintf("transition %s -> %s not allowed for bet %s", b.Status, to, id),
				apperrors.ErrInvalidTransition)
		}
		_, err = s.q(ctx).ExecContext(ctx, `
			UPDATE bets SET status = ?, order_id = ?, error = ?, execution_timestamp = ? WHERE id = ?
		`, string(to), orderID, errText, time.Now().UTC(), id)
		return mapSQLiteErr("update bet status", err)
	})
}

// UpdateBetStrikes sets the consecutive monitor strike count.
func (s *SQLiteStore) UpdateBetStrikes(ctx context.Context, id string, strikes int) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE bets SET consecutive_strikes = ? WHERE id = ?`, strikes, id)
	if err != nil {
		return mapSQLiteErr("update bet strikes", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrBetNotFound
	}
	return nil
}

// SetBetResult records the resolved outcome and P/L. Idempotent: a bet
// whose result is already set is left untouched.
func (s *SQLiteStore) SetBetResult(ctx context.Context, id string, actualResult int, profitLoss float64) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE bets SET actual_result = ?, profit_loss = ? WHERE id = ? AND actual_result IS NULL
	`, actualResult, profitLoss, id)
	if err != nil {
		return mapSQLiteErr("set bet result", err)
	}
	_ = res
	return nil
}

// GetCategoryExposure sums a firm's live stake in one market category:
// unresolved SUBMITTED or FILLED bets joined to their market's category.
func (s *SQLiteStore) GetCategoryExposure(ctx context.Context, firmName, category string) (float64, error) {
	var exposure float64
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(b.size), 0)
		FROM bets b
		JOIN markets m ON m.market_id = b.market_id
		WHERE b.firm_name = ?
		  AND m.category = ?
		  AND b.status IN ('SUBMITTED', 'FILLED')
		  AND b.actual_result IS NULL
	`, firmName, category).Scan(&exposure)
	if err != nil {
		return 0, mapSQLiteErr("get category exposure", err)
	}
	return exposure, nil
}

// ============================================================================
// Daily Counter Methods
// ============================================================================

// GetDailyCounter retrieves a firm's counter for the given UTC day.
// A missing row reads as zeros; rows for past days are simply ignored,
// which gives the lazy midnight rollover.
func (s *SQLiteStore) GetDailyCounter(ctx context.Context, firmName, day string) (*models.DailyCounter, error) {
	c := &models.DailyCounter{FirmName: firmName, Day: day}
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT bets_count, spent, realized_loss FROM daily_counters WHERE firm_name = ? AND day = ?
	`, firmName, day).Scan(&c.BetsCount, &c.Spent, &c.RealizedLoss)
	if err == sql.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("get daily counter", err)
	}
	return c, nil
}

// AddDailySpend records a bet and its stake against the day's counter.
func (s *SQLiteStore) AddDailySpend(ctx context.Context, firmName, day string, amount float64) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO daily_counters (firm_name, day, bets_count, spent, realized_loss)
		VALUES (?, ?, 1, ?, 0)
		ON CONFLICT(firm_name, day) DO UPDATE SET
			bets_count = bets_count + 1,
			spent = spent + excluded.spent
	`, firmName, day, amount)
	return mapSQLiteErr("add daily spend", err)
}

// RefundDailySpend reverses one recorded bet after a failed submission.
func (s *SQLiteStore) RefundDailySpend(ctx context.Context, firmName, day string, amount float64) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE daily_counters
		SET bets_count = MAX(bets_count - 1, 0), spent = MAX(spent - ?, 0)
		WHERE firm_name = ? AND day = ?
	`, amount, firmName, day)
	return mapSQLiteErr("refund daily spend", err)
}

// AddDailyLoss records a realized loss against the day's counter.
func (s *SQLiteStore) AddDailyLoss(ctx context.Context, firmName, day string, loss float64) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO daily_counters (firm_name, day, bets_count, spent, realized_loss)
		VALUES (?, ?, 0, 0, ?)
		ON CONFLICT(firm_name, day) DO UPDATE SET
			realized_loss = realized_loss + excluded.realized_loss
	`, firmName, day, loss)
	return mapSQLiteErr("add daily loss", err)
}

// AppendBetReview appends a monitor review to the bet's history.
func (s *SQLiteStore) AppendBetReview(ctx context.Context, id string, review models.OrderReview) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		reviews, err := s.GetBetReviews(ctx, id)
		if err != nil {
			return err
		}
		reviews = append(reviews, review)
		blob, err := json.Marshal(reviews)
		if err != nil {
			return fmt.Errorf("marshal reviews: %w", err)
		}
		res, err := s.q(ctx).ExecContext(ctx, `UPDATE bets SET reviews = ? WHERE id = ?`, string(blob), id)
		if err != nil {
			return mapSQLiteErr("append bet review", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrBetNotFound
		}
		return nil
	})
}

// GetBetReviews returns the bet's monitor review history, oldest first.
func (s *SQLiteStore) GetBetReviews(ctx context.Context, id string) ([]models.OrderReview, error) {
	var blob string
	err := s.q(ctx).QueryRowContext(ctx, `SELECT reviews FROM bets WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrBetNotFound
	}
	if err != nil {
		return nil, mapSQLiteErr("get bet reviews", err)
	}
	var reviews []models.OrderReview
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &reviews); err != nil {
			return nil, fmt.Errorf("unmarshal reviews: %w", err)
		}
	}
	return reviews, nil
}

// ============================================================================
// Cycle Methods
// ============================================================================

// CreateCycle inserts a new cycle record.
func (s *SQLiteStore) CreateCycle(ctx context.Context, c *models.CycleRecord) error {
	counts, _ := json.Marshal(c.PerCategoryCounts)
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO cycles (id, status, started_at, finished_at, markets_fetched, markets_tradable, bets_approved, bets_executed, bets_failed, category_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, string(c.Status), c.StartedAt, nullTime(c.FinishedAt), c.MarketsFetched, c.MarketsTradable, c.BetsApproved, c.BetsExecuted, c.BetsFailed, string(counts))
	return mapSQLiteErr("create cycle", err)
}

// UpdateCycle persists the final state of a cycle record.
func (s *SQLiteStore) UpdateCycle(ctx context.Context, c *models.CycleRecord) error {
	counts, _ := json.Marshal(c.PerCategoryCounts)
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE cycles SET status = ?, finished_at = ?, markets_fetched = ?, markets_tradable = ?, bets_approved = ?, bets_executed = ?, bets_failed = ?, category_counts = ?
		WHERE id = ?
	`, string(c.Status), nullTime(c.FinishedAt), c.MarketsFetched, c.MarketsTradable, c.BetsApproved, c.BetsExecuted, c.BetsFailed, string(counts), c.ID)
	return mapSQLiteErr("update cycle", err)
}

// GetCycles retrieves the most recent cycle records.
func (s *SQLiteStore) GetCycles(ctx context.Context, limit int) ([]models.CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, status, started_at, finished_at, markets_fetched, markets_tradable, bets_approved, bets_executed, bets_failed, category_counts
		FROM cycles ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, mapSQLiteErr("get cycles", err)
	}
	defer rows.Close()

	var cycles []models.CycleRecord
	for rows.Next() {
		var c models.CycleRecord
		var status, counts string
		var finished sql.NullTime
		if err := rows.Scan(&c.ID, &status, &c.StartedAt, &finished, &c.MarketsFetched, &c.MarketsTradable, &c.BetsApproved, &c.BetsExecuted, &c.BetsFailed, &counts); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.Status = models.CycleStatus(status)
		if finished.Valid {
			c.FinishedAt = finished.Time
		}
		if counts != "" {
			_ = json.Unmarshal([]byte(counts), &c.PerCategoryCounts)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// ============================================================================
// Cancelled Order Methods
// ============================================================================

// SaveCancelledOrder records a monitor cancellation with its history.
func (s *SQLiteStore) SaveCancelledOrder(ctx context.Context, c *models.CancelledOrder) error {
	history, _ := json.Marshal(c.StrikesHistory)
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO cancelled_orders (order_id, firm_name, market_id, strikes_history, cancel_reason, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.OrderID, c.FirmName, c.MarketID, string(history), c.CancelReason, c.CancelledAt)
	return mapSQLiteErr("save cancelled order", err)
}

// GetCancelledOrders retrieves the most recent cancellations.
func (s *SQLiteStore) GetCancelledOrders(ctx context.Context, limit int) ([]models.CancelledOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT order_id, firm_name, market_id, strikes_history, cancel_reason, cancelled_at
		FROM cancelled_orders ORDER BY cancelled_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, mapSQLiteErr("get cancelled orders", err)
	}
	defer rows.Close()

	var orders []models.CancelledOrder
	for rows.Next() {
		var c models.CancelledOrder
		var history string
		if err := rows.Scan(&c.OrderID, &c.FirmName, &c.MarketID, &history, &c.CancelReason, &c.CancelledAt); err != nil {
			return nil, fmt.Errorf("failed to scan cancelled order: %w", err)
		}
		if history != "" {
			_ = json.Unmarshal([]byte(history), &c.StrikesHistory)
		}
		orders = append(orders, c)
	}
	return orders, rows.Err()
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
