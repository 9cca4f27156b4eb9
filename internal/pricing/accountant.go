package pricing

import (
	"math"
	"strings"

	"modelarena/internal/models"
)

// Characters-per-token constants for the estimation heuristic. These are
// deliberate approximations: cost figures derived from them are estimates
// unless the backend reports exact usage, which is preferred when available.
const (
	openAICharsPerToken    = 4.0
	anthropicCharsPerToken = 3.8
	fallbackCharsPerToken  = 4.0
)

// costPrecision is the number of decimal places costs are rounded to.
const costPrecision = 6

// Accountant converts token counts to monetary cost against the catalog's
// price table. All methods are pure and safe for concurrent use: the catalog
// is read-only after initialization.
type Accountant struct {
	catalog *Catalog
}

// NewAccountant creates an accountant over an immutable catalog.
func NewAccountant(catalog *Catalog) *Accountant {
	return &Accountant{catalog: catalog}
}

// EstimateTokens approximates the token count of text for a model using the
// per-provider character ratio. Blank text counts as zero. Unknown model ids
// fall back to the default ratio; this function never fails.
func (a *Accountant) EstimateTokens(text string, modelID string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	ratio := fallbackCharsPerToken
	if d, err := a.catalog.Lookup(modelID); err == nil {
		switch d.Provider {
		case models.ProviderOpenAI:
			ratio = openAICharsPerToken
		case models.ProviderAnthropic:
			ratio = anthropicCharsPerToken
		}
	}

	estimate := int(math.Ceil(float64(len(text)) / ratio))
	if estimate < 0 {
		return 0
	}
	return estimate
}

// Cost computes the cost breakdown for a usage against a model's pricing.
// Returns ErrUnknownModel when the model id has no catalog entry.
func (a *Accountant) Cost(usage models.TokenUsage, modelID string) (models.CostCalculation, error) {
	d, err := a.catalog.Lookup(modelID)
	if err != nil {
		return models.CostCalculation{}, err
	}

	inputCost := round(float64(usage.Input) / 1000.0 * d.InputPricePer1K)
	outputCost := round(float64(usage.Output) / 1000.0 * d.OutputPricePer1K)

	return models.CostCalculation{
		InputCost:  inputCost,
		OutputCost: outputCost,
		TotalCost:  round(inputCost + outputCost),
	}, nil
}

// LiveCost is a convenience wrapper returning only the running total for the
// given token counts. Same failure mode as Cost.
func (a *Accountant) LiveCost(inputTokens, outputTokens int, modelID string) (float64, error) {
	calc, err := a.Cost(models.TokenUsage{Input: inputTokens, Output: outputTokens}, modelID)
	if err != nil {
		return 0, err
	}
	return calc.TotalCost, nil
}

// round half-up rounds to the fixed cost precision for reproducibility.
func round(v float64) float64 {
	shift := math.Pow10(costPrecision)
	return math.Round(v*shift) / shift
}
