package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"modelarena/internal/models"
)

func TestDefaultCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	for _, id := range []string{"gpt-4o", "gpt-4o-mini", "claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"} {
		d, err := c.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s) error = %v", id, err)
		}
		if d.ID != id {
			t.Errorf("Lookup(%s).ID = %s", id, d.ID)
		}
		if d.InputPricePer1K <= 0 || d.OutputPricePer1K <= 0 {
			t.Errorf("Lookup(%s) has non-positive pricing", id)
		}
	}

	_, err := c.Lookup("bogus")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Lookup(bogus) error = %v, want ErrUnknownModel", err)
	}
}

func TestLoadCatalogOverridesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `models:
  - id: gpt-4o
    display_name: GPT-4o (discounted)
    provider: openai
    input_price_per_1k: 0.001
    output_price_per_1k: 0.002
    max_context_tokens: 128000
    supports_streaming: true
  - id: custom-model
    display_name: Custom
    provider: anthropic
    input_price_per_1k: 0.0001
    output_price_per_1k: 0.0002
    max_context_tokens: 8192
    supports_streaming: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}

	overridden, err := c.Lookup("gpt-4o")
	if err != nil {
		t.Fatalf("Lookup(gpt-4o) error = %v", err)
	}
	if overridden.InputPricePer1K != 0.001 {
		t.Errorf("override not applied: InputPricePer1K = %f", overridden.InputPricePer1K)
	}

	custom, err := c.Lookup("custom-model")
	if err != nil {
		t.Fatalf("Lookup(custom-model) error = %v", err)
	}
	if custom.Provider != models.ProviderAnthropic {
		t.Errorf("custom provider = %s", custom.Provider)
	}

	// Defaults without overrides survive the merge.
	if !c.Has("claude-3-5-haiku-20241022") {
		t.Error("default model lost after merge")
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog("/nonexistent/catalog.yaml"); err == nil {
		t.Error("LoadCatalog() expected error for missing file")
	}
}

func TestCatalogListOrder(t *testing.T) {
	c := DefaultCatalog()
	list := c.List()
	if len(list) != 4 {
		t.Fatalf("List() returned %d entries, want 4", len(list))
	}
	if list[0].ID != "gpt-4o" {
		t.Errorf("List()[0].ID = %s, want gpt-4o", list[0].ID)
	}
}
