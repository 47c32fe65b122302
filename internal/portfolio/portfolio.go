// Package portfolio handles firm bankroll registration.
package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/config"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
	"github.com/Shilder25/opinion-arena/internal/store"
)

// Initialize creates the bankroll for every configured firm that does
// not have one yet. Existing portfolios are never touched, so the call
// is safe to repeat. Returns the number of portfolios created.
func Initialize(ctx context.Context, st store.DataStore, firms []config.FirmConfig, initialBalance float64, logger zerolog.Logger) (int, error) {
	created := 0
	for _, fc := range firms {
		_, err := st.GetPortfolio(ctx, fc.Name)
		if err == nil {
			continue
		}
		if !apperrors.Is(err, apperrors.ErrPortfolioNotFound) {
			return created, err
		}

		now := time.Now().UTC()
		pf := &models.Portfolio{
			FirmName:       fc.Name,
			Balance:        initialBalance,
			InitialBalance: initialBalance,
			PeakBalance:    initialBalance,
			LastUpdate:     now,
		}
		if err := st.CreatePortfolio(ctx, pf); err != nil {
			return created, err
		}
		created++
		logger.Info().
			Str("firm", fc.Name).
			Float64("balance", initialBalance).
			Msg("Portfolio initialized")
	}
	return created, nil
}
