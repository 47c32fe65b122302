package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/portfolio"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// response is the uniform JSON envelope.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Success: status < 400, Data: data}); err != nil {
		s.log.Error().Err(err).Msg("Response encoding failed")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: false, Error: msg})
}

// handleHealth reports liveness plus dependency readiness: store
// reachability and which secrets are configured. Flags only, a key
// value never leaves the process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	storeStatus := "ok"
	if _, err := s.store.GetCycles(r.Context(), 1); err != nil {
		status = "degraded"
		storeStatus = "unreachable"
	}

	firmKeys := make(map[string]bool, len(s.cfg.Firms))
	for _, f := range s.cfg.Firms {
		firmKeys[f.Name] = f.APIKey != ""
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                    status,
		"store":                     storeStatus,
		"enabled":                   s.cfg.System.Enabled,
		"mode":                      s.cfg.Bankroll.Mode,
		"venue_key_configured":      s.cfg.Venue.APIKey != "",
		"monitor_secret_configured": s.cfg.Monitor.Secret != "",
		"firm_keys_configured":      firmKeys,
		"time":                      time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRunCycle triggers a full trading cycle synchronously. A PARTIAL
// finish is still a success; a disabled system answers 503.
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	res, err := s.cycles.Run(r.Context())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSystemDisabled) {
			s.respondError(w, http.StatusServiceUnavailable, "system disabled")
			return
		}
		s.log.Error().Err(err).Msg("Cycle run failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response{Success: false, Data: res, Error: err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleMonitorOrders(w http.ResponseWriter, r *http.Request) {
	sum, err := s.monitor.Run(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Monitor run failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleInitPortfolios(w http.ResponseWriter, r *http.Request) {
	created, err := portfolio.Initialize(r.Context(), s.store, s.cfg.Firms, s.cfg.Bankroll.InitialBalance, s.log)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"created": created,
		"firms":   len(s.cfg.Firms),
	})
}

// leaderboardEntry ranks one firm. Score blends return, hit rate, and
// activity so an idle firm cannot coast on a lucky early win.
type leaderboardEntry struct {
	Rank       int     `json:"rank"`
	FirmName   string  `json:"firm_name"`
	Balance    float64 `json:"balance"`
	ReturnPct  float64 `json:"return_pct"`
	WinRatePct float64 `json:"win_rate_pct"`
	TotalBets  int     `json:"total_bets"`
	Score      float64 `json:"score"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	pfs, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]leaderboardEntry, 0, len(pfs))
	for i := range pfs {
		pf := &pfs[i]
		entries = append(entries, leaderboardEntry{
			FirmName:   pf.FirmName,
			Balance:    pf.Balance,
			ReturnPct:  pf.ReturnPct(),
			WinRatePct: pf.WinRate(),
			TotalBets:  pf.TotalBets,
			Score:      pf.ReturnPct()*0.5 + pf.WinRate()*0.3 + float64(pf.TotalBets)*0.2,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLiveMetrics(w http.ResponseWriter, r *http.Request) {
	pfs, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var totalBalance, totalProfit float64
	var totalBets, winningBets int
	for i := range pfs {
		totalBalance += pfs[i].Balance
		totalProfit += pfs[i].TotalProfit
		totalBets += pfs[i].TotalBets
		winningBets += pfs[i].WinningBets
	}

	metrics := map[string]interface{}{
		"firms":         len(pfs),
		"total_balance": totalBalance,
		"total_profit":  totalProfit,
		"total_bets":    totalBets,
		"winning_bets":  winningBets,
	}

	cycles, err := s.store.GetCycles(r.Context(), 1)
	if err == nil && len(cycles) > 0 {
		metrics["last_cycle"] = cycles[0]
	}
	s.respondJSON(w, http.StatusOK, metrics)
}

// handleActivePositions lists open orders and unresolved fills.
func (s *Server) handleActivePositions(w http.ResponseWriter, r *http.Request) {
	unresolved := false
	open, err := s.store.GetBets(r.Context(), store.BetFilter{
		Status:   models.BetSubmitted,
		Resolved: &unresolved,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filled, err := s.store.GetBets(r.Context(), store.BetFilter{
		Status:   models.BetFilled,
		Resolved: &unresolved,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, append(open, filled...))
}

func (s *Server) handleDecisionsHistory(w http.ResponseWriter, r *http.Request) {
	preds, err := s.store.GetPredictions(r.Context(), store.PredictionFilter{
		FirmName: r.URL.Query().Get("firm"),
		Limit:    limitParam(r, 100),
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, preds)
}

func (s *Server) handleCancelledOrders(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.store.GetCancelledOrders(r.Context(), limitParam(r, 50))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, cancelled)
}

func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	resolved := true
	bets, err := s.store.GetBets(r.Context(), store.BetFilter{
		Resolved: &resolved,
		Limit:    limitParam(r, 50),
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, bets)
}

func (s *Server) handleFirmTrades(w http.ResponseWriter, r *http.Request) {
	firm := chi.URLParam(r, "firm")
	bets, err := s.store.GetBets(r.Context(), store.BetFilter{
		FirmName: firm,
		Limit:    limitParam(r, 100),
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, bets)
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		return fallback
	}
	return n
}
