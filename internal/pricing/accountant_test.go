package pricing

import (
	"errors"
	"strings"
	"testing"

	"modelarena/internal/models"
)

func testAccountant() *Accountant {
	return NewAccountant(DefaultCatalog())
}

func TestEstimateTokens(t *testing.T) {
	a := testAccountant()

	tests := []struct {
		name     string
		text     string
		modelID  string
		expected int
	}{
		{
			name:     "empty text",
			text:     "",
			modelID:  "gpt-4o-mini",
			expected: 0,
		},
		{
			name:     "whitespace only",
			text:     "   \n\t  ",
			modelID:  "gpt-4o-mini",
			expected: 0,
		},
		{
			name:     "openai ratio 4 chars per token",
			text:     strings.Repeat("a", 40),
			modelID:  "gpt-4o-mini",
			expected: 10,
		},
		{
			name:     "anthropic ratio 3.8 chars per token",
			text:     strings.Repeat("a", 38),
			modelID:  "claude-3-5-haiku-20241022",
			expected: 10,
		},
		{
			name:     "anthropic rounds up",
			text:     strings.Repeat("a", 39),
			modelID:  "claude-3-5-haiku-20241022",
			expected: 11,
		},
		{
			name:     "unknown model falls back to default ratio",
			text:     strings.Repeat("a", 40),
			modelID:  "no-such-model",
			expected: 10,
		},
		{
			name:     "short text rounds up to one token",
			text:     "hi",
			modelID:  "gpt-4o",
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.EstimateTokens(tt.text, tt.modelID)
			if got != tt.expected {
				t.Errorf("EstimateTokens(%q, %s) = %d, want %d", tt.text, tt.modelID, got, tt.expected)
			}
		})
	}
}

func TestCost(t *testing.T) {
	a := testAccountant()

	tests := []struct {
		name           string
		usage          models.TokenUsage
		modelID        string
		expectedInput  float64
		expectedOutput float64
		expectedTotal  float64
	}{
		{
			name:           "gpt-4o 1000 in 500 out",
			usage:          models.TokenUsage{Input: 1000, Output: 500},
			modelID:        "gpt-4o",
			expectedInput:  0.0025,
			expectedOutput: 0.005,
			expectedTotal:  0.0075,
		},
		{
			name:           "haiku 2000 in 1000 out",
			usage:          models.TokenUsage{Input: 2000, Output: 1000},
			modelID:        "claude-3-5-haiku-20241022",
			expectedInput:  0.0016,
			expectedOutput: 0.004,
			expectedTotal:  0.0056,
		},
		{
			name:          "zero usage is zero cost",
			usage:         models.TokenUsage{},
			modelID:       "gpt-4o-mini",
			expectedTotal: 0,
		},
	}

	tolerance := 1e-9
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := a.Cost(tt.usage, tt.modelID)
			if err != nil {
				t.Fatalf("Cost() error = %v", err)
			}
			if diff := calc.InputCost - tt.expectedInput; diff > tolerance || diff < -tolerance {
				t.Errorf("InputCost = %.6f, want %.6f", calc.InputCost, tt.expectedInput)
			}
			if diff := calc.OutputCost - tt.expectedOutput; diff > tolerance || diff < -tolerance {
				t.Errorf("OutputCost = %.6f, want %.6f", calc.OutputCost, tt.expectedOutput)
			}
			if diff := calc.TotalCost - tt.expectedTotal; diff > tolerance || diff < -tolerance {
				t.Errorf("TotalCost = %.6f, want %.6f", calc.TotalCost, tt.expectedTotal)
			}
		})
	}
}

func TestCostUnknownModel(t *testing.T) {
	a := testAccountant()

	_, err := a.Cost(models.TokenUsage{Input: 10}, "no-such-model")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Cost() error = %v, want ErrUnknownModel", err)
	}

	_, err = a.LiveCost(10, 20, "no-such-model")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("LiveCost() error = %v, want ErrUnknownModel", err)
	}
}

func TestCostIsPure(t *testing.T) {
	a := testAccountant()
	usage := models.TokenUsage{Input: 123, Output: 456}

	first, err := a.Cost(usage, "gpt-4o")
	if err != nil {
		t.Fatalf("Cost() error = %v", err)
	}
	second, err := a.Cost(usage, "gpt-4o")
	if err != nil {
		t.Fatalf("Cost() error = %v", err)
	}
	if first != second {
		t.Errorf("Cost() not idempotent: %+v vs %+v", first, second)
	}
}

func TestLiveCostMonotone(t *testing.T) {
	a := testAccountant()

	prev := -1.0
	for output := 0; output <= 5000; output += 250 {
		cost, err := a.LiveCost(100, output, "claude-3-5-sonnet-20241022")
		if err != nil {
			t.Fatalf("LiveCost() error = %v", err)
		}
		if cost < prev {
			t.Fatalf("cost decreased: %f after %f at output=%d", cost, prev, output)
		}
		prev = cost
	}
}
