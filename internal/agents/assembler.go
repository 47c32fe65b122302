package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Shilder25/opinion-arena/internal/collectors"
	"github.com/Shilder25/opinion-arena/internal/models"
)

// Assembler runs the full analysis pipeline for one (firm, market) pair:
// collector reports, persona prompt, model call, validation.
type Assembler struct {
	collectors *collectors.Set
	logger     zerolog.Logger
}

// NewAssembler creates an analysis assembler.
func NewAssembler(set *collectors.Set, logger zerolog.Logger) *Assembler {
	return &Assembler{collectors: set, logger: logger}
}

// Evaluate produces a validated prediction for the pair. Collector
// outages degrade to neutral reports; a model failure after retries or a
// schema rejection returns the error so the orchestrator can skip the
// pair.
func (a *Assembler) Evaluate(ctx context.Context, firm *Firm, m *models.Market) (*models.Prediction, error) {
	reports := a.collectors.CollectAll(ctx, m)

	system, user := BuildPrompt(&firm.Firm, m, reports)

	blob, err := firm.Client.Predict(ctx, system, user)
	if err != nil {
		return nil, err
	}

	pred, err := ValidateDecision(firm.Name, m.MarketID, blob)
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("firm", firm.Name).
		Int64("market_id", m.MarketID).
		Float64("probability", pred.Probability).
		Float64("confidence", pred.Confidence).
		Msg("Prediction assembled")
	return pred, nil
}
