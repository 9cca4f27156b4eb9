package providers

import (
	"errors"
	"fmt"

	"modelarena/internal/models"
)

var (
	// ErrProviderNotConfigured is returned when a model resolves to a
	// provider family that has no configured instance (missing API key).
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// RegistryConfig holds credentials and endpoint overrides per provider
// family. Empty API keys leave that family unconfigured.
type RegistryConfig struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

// Registry resolves model descriptors to provider instances. It is built
// once at startup and read-only afterwards.
type Registry struct {
	providers map[models.ProviderTag]Provider
}

// NewRegistry constructs provider instances for every family with
// credentials present.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	reg := &Registry{providers: make(map[models.ProviderTag]Provider)}

	if cfg.OpenAIAPIKey != "" {
		p, err := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
		}
		reg.providers[models.ProviderOpenAI] = p
	}

	if cfg.AnthropicAPIKey != "" {
		p, err := NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		reg.providers[models.ProviderAnthropic] = p
	}

	return reg, nil
}

// NewRegistryWith builds a registry from pre-constructed providers. Used by
// tests to inject scripted backends.
func NewRegistryWith(providers map[models.ProviderTag]Provider) *Registry {
	m := make(map[models.ProviderTag]Provider, len(providers))
	for tag, p := range providers {
		m[tag] = p
	}
	return &Registry{providers: m}
}

// ForModel returns the provider instance serving a descriptor's family.
func (r *Registry) ForModel(d models.ModelDescriptor) (Provider, error) {
	p, ok := r.providers[d.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, d.Provider)
	}
	return p, nil
}
