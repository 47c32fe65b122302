package agents

import (
	"github.com/Shilder25/opinion-arena/internal/config"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// Firm pairs a registered firm with its model client.
type Firm struct {
	models.Firm
	Client LLMClient
}

var validStrategies = map[models.SizingStrategy]bool{
	models.StrategyKellyConservative:  true,
	models.StrategyFixedFractional:    true,
	models.StrategyProportional:       true,
	models.StrategyMartingaleModified: true,
	models.StrategyAntiMartingale:     true,
}

// BuildFirms constructs the firm roster from configuration. Order is the
// config order and stays fixed for the life of the process.
func BuildFirms(cfgs []config.FirmConfig) ([]Firm, error) {
	firms := make([]Firm, 0, len(cfgs))
	for _, fc := range cfgs {
		strategy := models.SizingStrategy(fc.Strategy)
		if !validStrategies[strategy] {
			return nil, apperrors.NewConfigError("firms.strategy", "unknown strategy "+fc.Strategy+" for firm "+fc.Name)
		}
		firms = append(firms, Firm{
			Firm: models.Firm{
				Name:     fc.Name,
				ModelID:  fc.ModelID,
				ColorTag: fc.ColorTag,
				Strategy: strategy,
			},
			Client: NewOpenAIClient(fc),
		})
	}
	return firms, nil
}
