package models

//
// ModelDescriptor (static catalog data, immutable after load)
//

// ProviderTag identifies which backend family serves a model.
type ProviderTag string

const (
	ProviderOpenAI    ProviderTag = "openai"
	ProviderAnthropic ProviderTag = "anthropic"
)

// ModelDescriptor describes one selectable model: identity, pricing and
// capability limits. Descriptors are loaded once at process start and are
// read-only afterwards, so they are safe for unsynchronized concurrent reads.
type ModelDescriptor struct {
	ID          string      `json:"id" yaml:"id"`
	DisplayName string      `json:"display_name" yaml:"display_name"`
	Provider    ProviderTag `json:"provider" yaml:"provider"`

	// Prices are USD per 1K tokens.
	InputPricePer1K  float64 `json:"input_price_per_1k" yaml:"input_price_per_1k"`
	OutputPricePer1K float64 `json:"output_price_per_1k" yaml:"output_price_per_1k"`

	MaxContextTokens  int  `json:"max_context_tokens" yaml:"max_context_tokens"`
	SupportsStreaming bool `json:"supports_streaming" yaml:"supports_streaming"`
}
