package providers

import (
	"context"

	"modelarena/internal/models"
)

// CompletionRequest is a normalized request for one streamed completion.
type CompletionRequest struct {
	Model     string // provider-specific model name
	Prompt    string
	MaxTokens int // 0 means provider default
}

// StreamChunk is one increment of a streamed completion. Usage is non-nil
// only when the provider reported exact token counts, typically on the final
// chunk; callers should prefer it over their own estimates.
type StreamChunk struct {
	Delta string
	Usage *models.TokenUsage
	Done  bool
}

// Stream yields the increments of one completion. Recv returns chunks until
// a chunk with Done set; after that it returns io.EOF. Recv honors the
// context the stream was opened with.
type Stream interface {
	Recv() (StreamChunk, error)
	Close() error
}

// Provider is implemented by each concrete LLM backend (OpenAI, Anthropic).
// A provider turns a prompt into an incremental text stream; it knows nothing
// about slots, cost or persistence.
type Provider interface {
	// Type returns the provider family tag
	Type() models.ProviderTag

	// StreamCompletion opens a streamed completion for the request
	StreamCompletion(ctx context.Context, req CompletionRequest) (Stream, error)
}
