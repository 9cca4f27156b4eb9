package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"modelarena/internal/models"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAITimeout        = 120 * time.Second
)

// OpenAIProvider implements the Provider interface for OpenAI chat models.
type OpenAIProvider struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for OpenAI provider")
	}
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	client := &http.Client{
		Timeout: openAITimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &OpenAIProvider{
		apiKey:  apiKey,
		client:  client,
		baseURL: baseURL,
	}, nil
}

// Type returns the provider family tag.
func (p *OpenAIProvider) Type() models.ProviderTag {
	return models.ProviderOpenAI
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIChatRequest struct {
	Model         string              `json:"model"`
	Messages      []openAIChatMessage `json:"messages"`
	Stream        bool                `json:"stream"`
	StreamOptions openAIStreamOptions `json:"stream_options"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamCompletion opens a streamed chat completion against OpenAI.
func (p *OpenAIProvider) StreamCompletion(ctx context.Context, req CompletionRequest) (Stream, error) {
	payload := openAIChatRequest{
		Model:         req.Model,
		Messages:      []openAIChatMessage{{Role: "user", Content: req.Prompt}},
		Stream:        true,
		StreamOptions: openAIStreamOptions{IncludeUsage: true},
		MaxTokens:     req.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return &openAIStream{reader: newSSEReader(resp.Body)}, nil
}

// openAIStream adapts the OpenAI SSE chunk format to StreamChunk.
type openAIStream struct {
	reader *sseReader
	done   bool

	// usage arrives in a trailing chunk with an empty choices array when
	// stream_options.include_usage is set; it is surfaced on the Done chunk.
	usage *models.TokenUsage
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Recv returns the next increment from the stream.
func (s *openAIStream) Recv() (StreamChunk, error) {
	if s.done {
		return StreamChunk{}, io.EOF
	}

	for {
		event, err := s.reader.Read()
		if err == io.EOF || (event != nil && event.Done) {
			s.done = true
			return StreamChunk{Done: true, Usage: s.usage}, nil
		}
		if err != nil {
			return StreamChunk{}, err
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal(event.Data, &chunk); err != nil {
			return StreamChunk{}, fmt.Errorf("failed to decode stream chunk: %w", err)
		}

		if chunk.Usage != nil {
			s.usage = &models.TokenUsage{
				Input:  chunk.Usage.PromptTokens,
				Output: chunk.Usage.CompletionTokens,
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		return StreamChunk{Delta: delta}, nil
	}
}

// Close closes the underlying stream.
func (s *openAIStream) Close() error {
	return s.reader.Close()
}
