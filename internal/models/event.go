package models

//
// Outward event stream (one JSON object per SSE frame)
//

// EventType discriminates outward stream events.
type EventType string

const (
	EventStart    EventType = "start"
	EventToken    EventType = "token"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// SlotID names one of the two concurrent backend bindings in a comparison.
type SlotID string

const (
	SlotA SlotID = "A"
	SlotB SlotID = "B"
)

// EventData carries the slot's full current state so a consumer can render
// without a follow-up query, even on error frames.
type EventData struct {
	Model      string    `json:"model"`
	Delta      string    `json:"delta,omitempty"` // only meaningful for token events
	Tokens     TokenView `json:"tokens"`
	Cost       float64   `json:"cost"`
	IsComplete bool      `json:"isComplete"`
	Error      string    `json:"error,omitempty"`
}

// TokenView is the wire shape of TokenUsage, with the total materialized.
type TokenView struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// NewTokenView converts a TokenUsage into its wire shape.
func NewTokenView(u TokenUsage) TokenView {
	return TokenView{Input: u.Input, Output: u.Output, Total: u.Total()}
}

// StreamEvent is one tagged frame of the merged outward stream. Events of a
// single slot are strictly ordered (one start, zero or more token, exactly
// one terminal complete/error); events of different slots may interleave in
// any order.
type StreamEvent struct {
	Type EventType `json:"type"`
	Slot SlotID    `json:"slot"`
	Data EventData `json:"data"`
}

// Terminal reports whether the event ends its slot's stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
