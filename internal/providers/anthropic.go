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
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicTimeout        = 120 * time.Second

	// Anthropic requires max_tokens; used when the request does not set one.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider implements the Provider interface for Anthropic models.
type AnthropicProvider struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider(apiKey, baseURL string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for Anthropic provider")
	}
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}

	client := &http.Client{
		Timeout: anthropicTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &AnthropicProvider{
		apiKey:  apiKey,
		client:  client,
		baseURL: baseURL,
	}, nil
}

// Type returns the provider family tag.
func (p *AnthropicProvider) Type() models.ProviderTag {
	return models.ProviderAnthropic
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamCompletion opens a streamed messages request against Anthropic.
func (p *AnthropicProvider) StreamCompletion(ctx context.Context, req CompletionRequest) (Stream, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Stream:    true,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return &anthropicStream{reader: newSSEReader(resp.Body)}, nil
}

// anthropicStream adapts the Anthropic messages event format to StreamChunk.
type anthropicStream struct {
	reader *sseReader
	done   bool
	usage  models.TokenUsage
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Recv returns the next increment from the stream. Anthropic reports input
// tokens on message_start and running output tokens on message_delta; the
// final counts ride on the Done chunk.
func (s *anthropicStream) Recv() (StreamChunk, error) {
	if s.done {
		return StreamChunk{}, io.EOF
	}

	for {
		event, err := s.reader.Read()
		if err == io.EOF || (event != nil && event.Done) {
			s.done = true
			usage := s.usage
			return StreamChunk{Done: true, Usage: &usage}, nil
		}
		if err != nil {
			return StreamChunk{}, err
		}

		var ev anthropicStreamEvent
		if err := json.Unmarshal(event.Data, &ev); err != nil {
			return StreamChunk{}, fmt.Errorf("failed to decode stream event: %w", err)
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				s.usage.Input = ev.Message.Usage.InputTokens
				s.usage.Output = ev.Message.Usage.OutputTokens
			}

		case "content_block_delta":
			if ev.Delta != nil && ev.Delta.Text != "" {
				return StreamChunk{Delta: ev.Delta.Text}, nil
			}

		case "message_delta":
			if ev.Usage != nil {
				s.usage.Output = ev.Usage.OutputTokens
			}

		case "message_stop":
			s.done = true
			usage := s.usage
			return StreamChunk{Done: true, Usage: &usage}, nil

		case "error":
			if ev.Error != nil {
				return StreamChunk{}, fmt.Errorf("anthropic stream error: %s: %s", ev.Error.Type, ev.Error.Message)
			}
			return StreamChunk{}, fmt.Errorf("anthropic stream error")
		}
	}
}

// Close closes the underlying stream.
func (s *anthropicStream) Close() error {
	return s.reader.Close()
}
