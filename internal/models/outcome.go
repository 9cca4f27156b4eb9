package models

import (
	"time"

	"github.com/google/uuid"
)

//
// Comparison request / outcome / persisted record
//

// ComparisonRequest starts one comparison. Immutable once accepted.
type ComparisonRequest struct {
	Prompt   string `json:"prompt"`
	ModelID1 string `json:"modelId1"`
	ModelID2 string `json:"modelId2"`
}

// SlotResult is the final state of one slot at joint completion. A failed
// slot has Err set and its text is not considered a response.
type SlotResult struct {
	ModelID string
	Text    string
	Usage   TokenUsage
	Cost    float64
	Err     string
}

// Failed reports whether the slot ended in the Failed state.
func (r SlotResult) Failed() bool {
	return r.Err != ""
}

// ComparisonOutcome is the joint state across both slots at the moment both
// are terminal. It is constructed exactly once per request and handed to the
// history store; it is never mutated afterwards.
type ComparisonOutcome struct {
	Prompt string
	SlotA  SlotResult
	SlotB  SlotResult
}

// ComparisonRecord is the persisted form of a ComparisonOutcome. Text and
// cost columns are nullable: a NULL pair represents a failed slot.
type ComparisonRecord struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Prompt   string    `db:"prompt" json:"prompt"`
	ModelID1 string    `db:"model_id_1" json:"modelId1"`
	ModelID2 string    `db:"model_id_2" json:"modelId2"`

	FinalText1 *string  `db:"final_text_1" json:"finalText1"`
	FinalText2 *string  `db:"final_text_2" json:"finalText2"`
	Cost1      *float64 `db:"cost_1" json:"cost1"`
	Cost2      *float64 `db:"cost_2" json:"cost2"`

	Error1 *string `db:"error_1" json:"error1,omitempty"`
	Error2 *string `db:"error_2" json:"error2,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewComparisonRecord freezes an outcome into its persisted shape, assigning
// the record id and creation timestamp.
func NewComparisonRecord(outcome ComparisonOutcome) *ComparisonRecord {
	rec := &ComparisonRecord{
		ID:        uuid.New(),
		Prompt:    outcome.Prompt,
		ModelID1:  outcome.SlotA.ModelID,
		ModelID2:  outcome.SlotB.ModelID,
		CreatedAt: time.Now().UTC(),
	}

	if outcome.SlotA.Failed() {
		rec.Error1 = strPtr(outcome.SlotA.Err)
	} else {
		rec.FinalText1 = strPtr(outcome.SlotA.Text)
		rec.Cost1 = floatPtr(outcome.SlotA.Cost)
	}

	if outcome.SlotB.Failed() {
		rec.Error2 = strPtr(outcome.SlotB.Err)
	} else {
		rec.FinalText2 = strPtr(outcome.SlotB.Text)
		rec.Cost2 = floatPtr(outcome.SlotB.Cost)
	}

	return rec
}

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
