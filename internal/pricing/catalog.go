package pricing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"modelarena/internal/models"
)

var (
	// ErrUnknownModel is returned when a model id has no catalog entry
	ErrUnknownModel = errors.New("unknown model")
)

// Catalog is the immutable model/price table. It is built once at process
// start and never mutated at runtime, so lookups need no synchronization.
type Catalog struct {
	byID  map[string]models.ModelDescriptor
	order []string
}

// defaultDescriptors is the embedded catalog used when no catalog file is
// configured. Prices are USD per 1K tokens.
var defaultDescriptors = []models.ModelDescriptor{
	{
		ID:                "gpt-4o",
		DisplayName:       "GPT-4o",
		Provider:          models.ProviderOpenAI,
		InputPricePer1K:   0.0025,
		OutputPricePer1K:  0.01,
		MaxContextTokens:  128000,
		SupportsStreaming: true,
	},
	{
		ID:                "gpt-4o-mini",
		DisplayName:       "GPT-4o mini",
		Provider:          models.ProviderOpenAI,
		InputPricePer1K:   0.00015,
		OutputPricePer1K:  0.0006,
		MaxContextTokens:  128000,
		SupportsStreaming: true,
	},
	{
		ID:                "claude-3-5-sonnet-20241022",
		DisplayName:       "Claude 3.5 Sonnet",
		Provider:          models.ProviderAnthropic,
		InputPricePer1K:   0.003,
		OutputPricePer1K:  0.015,
		MaxContextTokens:  200000,
		SupportsStreaming: true,
	},
	{
		ID:                "claude-3-5-haiku-20241022",
		DisplayName:       "Claude 3.5 Haiku",
		Provider:          models.ProviderAnthropic,
		InputPricePer1K:   0.0008,
		OutputPricePer1K:  0.004,
		MaxContextTokens:  200000,
		SupportsStreaming: true,
	},
}

// NewCatalog builds a catalog from explicit descriptors.
func NewCatalog(descriptors []models.ModelDescriptor) *Catalog {
	c := &Catalog{byID: make(map[string]models.ModelDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := c.byID[d.ID]; !exists {
			c.order = append(c.order, d.ID)
		}
		c.byID[d.ID] = d
	}
	return c
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultDescriptors)
}

// LoadCatalog reads descriptors from a YAML file. Entries in the file
// override embedded defaults with the same id; unknown ids are appended.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file struct {
		Models []models.ModelDescriptor `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	merged := make([]models.ModelDescriptor, 0, len(defaultDescriptors)+len(file.Models))
	merged = append(merged, defaultDescriptors...)
	merged = append(merged, file.Models...)

	c := NewCatalog(nil)
	for _, d := range merged {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry missing id (display name %q)", d.DisplayName)
		}
		if _, exists := c.byID[d.ID]; !exists {
			c.order = append(c.order, d.ID)
		}
		c.byID[d.ID] = d
	}
	return c, nil
}

// Lookup resolves a model id to its descriptor.
func (c *Catalog) Lookup(modelID string) (models.ModelDescriptor, error) {
	d, ok := c.byID[modelID]
	if !ok {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return d, nil
}

// Has reports whether a model id is registered.
func (c *Catalog) Has(modelID string) bool {
	_, ok := c.byID[modelID]
	return ok
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
