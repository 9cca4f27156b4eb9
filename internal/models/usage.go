package models

//
// Token usage and derived cost
//

// TokenUsage holds input/output token counts for one stream. Counts are
// estimates from the character heuristic unless the provider reported exact
// usage. Output only grows over a stream's lifetime; input is fixed once
// known.
type TokenUsage struct {
	Input  int `json:"input" db:"input_tokens"`
	Output int `json:"output" db:"output_tokens"`
}

// Total returns input + output.
func (u TokenUsage) Total() int {
	return u.Input + u.Output
}

// CostCalculation is the monetary breakdown derived from a TokenUsage and a
// model's pricing. It is a pure function of its inputs and is never stored
// apart from the usage that produced it.
type CostCalculation struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
}
