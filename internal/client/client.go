package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"modelarena/internal/models"
	"modelarena/internal/utils"
)

// EventHandler receives each stream event as it arrives. Returning an error
// aborts the stream.
type EventHandler func(ev models.StreamEvent) error

// Config holds client settings.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string

	// MaxRetries bounds reconnect attempts after a dropped connection.
	MaxRetries int

	// RetryBackoff is the initial reconnect delay; it doubles per attempt.
	RetryBackoff time.Duration

	HTTPClient *http.Client
}

// Client consumes the comparison API. On a dropped stream it reconnects with
// increasing backoff; events delivered before the drop are not replayed, the
// comparison simply starts over.
type Client struct {
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	http         *http.Client
	logger       *utils.Logger
}

// New creates a client. Zero-value config fields get defaults.
func New(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		http:         cfg.HTTPClient,
		logger:       utils.NewLogger("client"),
	}
}

// Compare runs one comparison and feeds every event to handler. A stream
// that ends without its [DONE] marker counts as a dropped connection and
// triggers a reconnect; a clean marker or a server-side rejection ends the
// call.
func (c *Client) Compare(ctx context.Context, req models.ComparisonRequest, handler EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff * time.Duration(1<<uint(attempt-1))
			c.logger.Warn("Stream dropped, reconnecting", "attempt", attempt, "backoff", backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		done, err := c.streamOnce(ctx, body, handler)
		if err == nil && done {
			return nil
		}
		if err != nil {
			// Rejections and handler aborts are final; only transport
			// failures are worth another attempt.
			var connErr *connectionError
			if !errors.As(err, &connErr) {
				return err
			}
			lastErr = err
			continue
		}

		lastErr = fmt.Errorf("stream ended without completion marker")
	}

	return fmt.Errorf("connection lost after %d attempts: %w", c.maxRetries+1, lastErr)
}

// streamOnce issues one POST /api/compare and consumes its SSE stream. The
// bool result reports whether the [DONE] marker was seen.
func (c *Client) streamOnce(ctx context.Context, body []byte, handler EventHandler) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/compare", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return false, &connectionError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return true, nil
		}

		var ev models.StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			c.logger.Warn("Skipping malformed stream event", "error", err)
			continue
		}
		if err := handler(ev); err != nil {
			return false, err
		}
	}

	if err := scanner.Err(); err != nil {
		return false, &connectionError{err: err}
	}

	// EOF before [DONE]: the connection dropped mid-stream.
	return false, nil
}

// Models fetches the selectable catalog.
func (c *Client) Models(ctx context.Context) ([]models.ModelDescriptor, error) {
	var payload struct {
		Models []models.ModelDescriptor `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/models", &payload); err != nil {
		return nil, err
	}
	return payload.Models, nil
}

// History fetches one page of stored comparisons.
func (c *Client) History(ctx context.Context, page, pageSize int, search string) ([]models.ComparisonRecord, int, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	if search != "" {
		query.Set("search", search)
	}
	path := "/api/history?" + query.Encode()

	var payload struct {
		Records []models.ComparisonRecord `json:"records"`
		Total   int                       `json:"total"`
	}
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, 0, err
	}
	return payload.Records, payload.Total, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &connectionError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); err == nil {
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}

	return apiErr
}

// connectionError marks transport failures eligible for reconnect.
type connectionError struct {
	err error
}

func (e *connectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.err)
}

func (e *connectionError) Unwrap() error {
	return e.err
}
