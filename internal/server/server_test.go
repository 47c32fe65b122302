package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shilder25/opinion-arena/internal/config"
	"github.com/Shilder25/opinion-arena/internal/cycle"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/orders"
	"github.com/Shilder25/opinion-arena/internal/store"
)

const testSecret = "test-secret"

type stubCycles struct {
	res *cycle.Result
	err error
}

func (s *stubCycles) Run(ctx context.Context) (*cycle.Result, error) { return s.res, s.err }

type stubMonitor struct {
	sum orders.Summary
	err error
}

func (s *stubMonitor) Run(ctx context.Context) (orders.Summary, error) { return s.sum, s.err }

func newTestServer(t *testing.T, cycles cycleRunner, monitor orderMonitor) (*Server, store.DataStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.System.Enabled = true
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Bankroll.Mode = config.ModeTest
	cfg.Bankroll.InitialBalance = 500
	cfg.Monitor.Secret = testSecret
	cfg.Firms = []config.FirmConfig{
		{Name: "alpha", Strategy: "FIXED_FRACTIONAL"},
		{Name: "beta", Strategy: "PROPORTIONAL"},
	}

	srv := New(Deps{
		Config:       cfg,
		Store:        st,
		Orchestrator: cycles,
		Monitor:      monitor,
		Logger:       zerolog.Nop(),
	})
	return srv, st
}

func doRequest(srv *Server, method, target, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if secret != "" {
		req.Header.Set("X-Monitor-Secret", secret)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var env response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// seedPortfolio writes a portfolio with a trading history so the ranking
// endpoints have something to chew on.
func seedPortfolio(t *testing.T, st store.DataStore, firm string, balance float64, totalBets, wins int) {
	t.Helper()
	require.NoError(t, st.CreatePortfolio(context.Background(), &models.Portfolio{
		FirmName:       firm,
		Balance:        balance,
		InitialBalance: 500,
		PeakBalance:    balance,
		TotalBets:      totalBets,
		WinningBets:    wins,
		TotalProfit:    balance - 500,
		LastUpdate:     time.Now().UTC(),
	}))
}

// seedServerBet writes a prediction plus a bet in the given status, and
// optionally resolves it.
func seedServerBet(t *testing.T, st store.DataStore, id, firm string, status models.BetStatus, resolve bool) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.SavePrediction(ctx, &models.Prediction{
		ID:          "pred-" + id,
		FirmName:    firm,
		MarketID:    100,
		Probability: 0.7,
		Confidence:  8,
		CreatedAt:   time.Now().UTC(),
	}))
	require.NoError(t, st.CreateBet(ctx, &models.Bet{
		ID:           id,
		PredictionID: "pred-" + id,
		FirmName:     firm,
		MarketID:     100,
		TokenID:      "tok-yes",
		Side:         "YES",
		Size:         10,
		LimitPrice:   0.55,
		Status:       models.BetApproved,
		CreatedAt:    time.Now().UTC(),
	}))

	switch status {
	case models.BetSubmitted:
		require.NoError(t, st.UpdateBetStatus(ctx, id, models.BetSubmitted, "ord-"+id, ""))
	case models.BetFilled:
		require.NoError(t, st.UpdateBetStatus(ctx, id, models.BetSubmitted, "ord-"+id, ""))
		require.NoError(t, st.UpdateBetStatus(ctx, id, models.BetFilled, "", ""))
	}
	if resolve {
		require.NoError(t, st.SetBetResult(ctx, id, 1, 5))
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{}, &stubMonitor{})

	rec := doRequest(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "ok", data["store"])
	assert.Equal(t, true, data["enabled"])
	assert.Equal(t, config.ModeTest, data["mode"])

	// Secrets report as booleans only, never as values.
	assert.Equal(t, false, data["venue_key_configured"])
	assert.Equal(t, true, data["monitor_secret_configured"])
	firmKeys := data["firm_keys_configured"].(map[string]interface{})
	assert.Equal(t, false, firmKeys["alpha"])
	assert.Equal(t, false, firmKeys["beta"])
}

func TestAdminRequiresSecret(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{res: &cycle.Result{}}, &stubMonitor{})

	rec := doRequest(srv, http.MethodPost, "/admin/run-cycle", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/admin/run-cycle", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)

	rec = doRequest(srv, http.MethodPost, "/admin/run-cycle", testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEmptySecretAlwaysDenied(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{res: &cycle.Result{}}, &stubMonitor{})
	srv.cfg.Monitor.Secret = ""

	// An unset secret locks the admin surface rather than opening it.
	rec := doRequest(srv, http.MethodPost, "/admin/run-cycle", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunCycleSystemDisabled(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{err: apperrors.ErrSystemDisabled}, &stubMonitor{})

	rec := doRequest(srv, http.MethodPost, "/admin/run-cycle", testSecret)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestRunCyclePartialFailureStillAnswers(t *testing.T) {
	res := &cycle.Result{SkipReasons: map[string]int{"no_orderbook": 2}}
	srv, _ := newTestServer(t, &stubCycles{res: res, err: errors.New("reconcile failed")}, &stubMonitor{})

	rec := doRequest(srv, http.MethodPost, "/admin/run-cycle", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "reconcile failed")
	assert.NotNil(t, env.Data)
}

func TestMonitorOrders(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{}, &stubMonitor{sum: orders.Summary{Reviewed: 4, Strikes: 1}})

	rec := doRequest(srv, http.MethodPost, "/admin/monitor-orders", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, float64(4), data["reviewed"])
	assert.Equal(t, float64(1), data["strikes"])
}

func TestMonitorOrdersError(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{}, &stubMonitor{err: errors.New("venue unreachable")})

	rec := doRequest(srv, http.MethodPost, "/admin/monitor-orders", testSecret)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInitPortfoliosIdempotent(t *testing.T) {
	srv, _ := newTestServer(t, &stubCycles{}, &stubMonitor{})

	rec := doRequest(srv, http.MethodPost, "/admin/initialize-portfolios", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["created"])
	assert.Equal(t, float64(2), data["firms"])

	// Existing portfolios survive a re-run untouched.
	rec = doRequest(srv, http.MethodPost, "/admin/initialize-portfolios", testSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeEnvelope(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["created"])
}

func TestLeaderboardRanking(t *testing.T) {
	srv, st := newTestServer(t, &stubCycles{}, &stubMonitor{})

	// alpha: return 10%, win rate 60%, 5 bets -> score 5 + 18 + 1 = 24
	// beta:  return -20%, win rate 25%, 4 bets -> score -10 + 7.5 + 0.8 = -1.7
	// gamma: return 0%, win rate 0%, 0 bets -> score 0
	seedPortfolio(t, st, "alpha", 550, 5, 3)
	seedPortfolio(t, st, "beta", 400, 4, 1)
	seedPortfolio(t, st, "gamma", 500, 0, 0)

	rec := doRequest(srv, http.MethodGet, "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Success bool               `json:"success"`
		Data    []leaderboardEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Len(t, env.Data, 3)

	assert.Equal(t, "alpha", env.Data[0].FirmName)
	assert.Equal(t, 1, env.Data[0].Rank)
	assert.InDelta(t, 24.0, env.Data[0].Score, 1e-9)

	assert.Equal(t, "gamma", env.Data[1].FirmName)
	assert.Equal(t, 2, env.Data[1].Rank)

	assert.Equal(t, "beta", env.Data[2].FirmName)
	assert.Equal(t, 3, env.Data[2].Rank)
	assert.InDelta(t, -1.7, env.Data[2].Score, 1e-9)
}

func TestLiveMetrics(t *testing.T) {
	srv, st := newTestServer(t, &stubCycles{}, &stubMonitor{})
	seedPortfolio(t, st, "alpha", 550, 5, 3)
	seedPortfolio(t, st, "beta", 400, 4, 1)

	now := time.Now().UTC()
	require.NoError(t, st.CreateCycle(context.Background(), &models.CycleRecord{
		ID:        "cyc-1",
		StartedAt: now,
		Status:    models.CycleComplete,
	}))

	rec := doRequest(srv, http.MethodGet, "/api/live-metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["firms"])
	assert.Equal(t, float64(950), data["total_balance"])
	assert.Equal(t, float64(-50), data["total_profit"])
	assert.Equal(t, float64(9), data["total_bets"])
	assert.Equal(t, float64(4), data["winning_bets"])
	assert.Contains(t, data, "last_cycle")
}

func TestActivePositions(t *testing.T) {
	srv, st := newTestServer(t, &stubCycles{}, &stubMonitor{})

	seedServerBet(t, st, "b1", "alpha", models.BetSubmitted, false)
	seedServerBet(t, st, "b2", "alpha", models.BetFilled, false)
	seedServerBet(t, st, "b3", "beta", models.BetFilled, true)
	seedServerBet(t, st, "b4", "beta", models.BetApproved, false)

	rec := doRequest(srv, http.MethodGet, "/api/active-positions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec).Data.([]interface{})
	// Open order plus unresolved fill. Settled and not-yet-submitted bets
	// are not positions.
	assert.Len(t, data, 2)
}

func TestRecentTrades(t *testing.T) {
	srv, st := newTestServer(t, &stubCycles{}, &stubMonitor{})

	seedServerBet(t, st, "b1", "alpha", models.BetFilled, true)
	seedServerBet(t, st, "b2", "alpha", models.BetFilled, false)

	rec := doRequest(srv, http.MethodGet, "/api/recent-trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data.([]interface{})
	assert.Len(t, data, 1)
}

func TestFirmTrades(t *testing.T) {
	srv, st := newTestServer(t, &stubCycles{}, &stubMonitor{})

	seedServerBet(t, st, "b1", "alpha", models.BetFilled, true)
	seedServerBet(t, st, "b2", "beta", models.BetFilled, false)

	rec := doRequest(srv, http.MethodGet, "/api/ai-trades/alpha", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []models.Bet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "alpha", env.Data[0].FirmName)
}

func TestDecisionsHistoryFilter(t *testing.T) {
	srv, st := newTestServer(t, &stubCycles{}, &stubMonitor{})
	ctx := context.Background()

	for i, firm := range []string{"alpha", "alpha", "beta"} {
		require.NoError(t, st.SavePrediction(ctx, &models.Prediction{
			ID:          "pred-" + string(rune('a'+i)),
			FirmName:    firm,
			MarketID:    int64(100 + i),
			Probability: 0.6,
			Confidence:  6,
			CreatedAt:   time.Now().UTC(),
		}))
	}

	rec := doRequest(srv, http.MethodGet, "/api/ai-decisions-history?firm=alpha", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data.([]interface{})
	assert.Len(t, data, 2)
}

func TestLimitParam(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 100},
		{"25", 25},
		{"0", 100},
		{"-5", 100},
		{"1001", 100},
		{"abc", 100},
	}
	for _, tc := range cases {
		target := "/x"
		if tc.raw != "" {
			target += "?limit=" + tc.raw
		}
		req := httptest.NewRequest(http.MethodGet, target, nil)
		assert.Equal(t, tc.want, limitParam(req, 100), "limit=%q", tc.raw)
	}
}
