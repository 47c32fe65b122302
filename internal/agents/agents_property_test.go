package agents

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: any decision blob with a numeric probability in [0,100] and
// non-empty reasoning validates, and the canonical prediction always
// lands with probability in [0,1] and confidence in [0,10].
func TestProperty_ValidateDecisionNormalises(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Validated predictions stay inside canonical ranges", prop.ForAll(
		func(prob, confidence float64, asString bool) bool {
			var blob string
			if asString {
				blob = fmt.Sprintf(`{"probability": "%f", "confidence": "%f", "probability_reasoning": "r"}`, prob, confidence)
			} else {
				blob = fmt.Sprintf(`{"probability": %f, "confidence": %f, "probability_reasoning": "r"}`, prob, confidence)
			}

			p, err := ValidateDecision("alpha", 100, blob)
			if err != nil {
				t.Logf("Unexpected rejection for prob=%f conf=%f: %v", prob, confidence, err)
				return false
			}
			if p.Probability < 0 || p.Probability > 1 {
				t.Logf("Probability out of range: %f", p.Probability)
				return false
			}
			if p.Confidence < 0 || p.Confidence > 10 {
				t.Logf("Confidence out of range: %f", p.Confidence)
				return false
			}
			// Percent inputs shrink by a factor of 100. The blob carries
			// six decimals, so allow that much slack near the boundary.
			if prob > 1.001 {
				diff := p.Probability - prob/100
				if diff < -1e-7 || diff > 1e-7 {
					t.Logf("Percent normalisation drifted: in=%f out=%f", prob, p.Probability)
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
