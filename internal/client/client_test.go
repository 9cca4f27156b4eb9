package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelarena/internal/models"
)

func sseFrame(t *testing.T, ev models.StreamEvent) string {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return "data: " + string(data) + "\n\n"
}

func testEvents() []models.StreamEvent {
	return []models.StreamEvent{
		{Type: models.EventStart, Slot: models.SlotA, Data: models.EventData{Model: "gpt-4o"}},
		{Type: models.EventToken, Slot: models.SlotA, Data: models.EventData{Model: "gpt-4o", Delta: "Hi"}},
		{Type: models.EventComplete, Slot: models.SlotA, Data: models.EventData{Model: "gpt-4o", IsComplete: true}},
	}
}

func TestCompareConsumesStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/compare", r.URL.Path)

		var req models.ComparisonRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Prompt)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range testEvents() {
			fmt.Fprint(w, sseFrame(t, ev))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	var got []models.StreamEvent
	err := c.Compare(context.Background(), models.ComparisonRequest{
		Prompt:   "hello",
		ModelID1: "gpt-4o",
		ModelID2: "gpt-4o-mini",
	}, func(ev models.StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, models.EventStart, got[0].Type)
	assert.Equal(t, "Hi", got[1].Data.Delta)
	assert.True(t, got[2].Data.IsComplete)
}

func TestCompareReconnectsOnDrop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")

		if n == 1 {
			// Drop mid-stream: events but no completion marker
			fmt.Fprint(w, sseFrame(t, testEvents()[0]))
			return
		}

		for _, ev := range testEvents() {
			fmt.Fprint(w, sseFrame(t, ev))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2, RetryBackoff: 10 * time.Millisecond})

	var count int
	err := c.Compare(context.Background(), models.ComparisonRequest{Prompt: "hello"}, func(models.StreamEvent) error {
		count++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	// The first attempt's event is not replayed but was delivered once
	assert.Equal(t, 4, count)
}

func TestCompareGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseFrame(t, testEvents()[0]))
		// Never send [DONE]
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2, RetryBackoff: 5 * time.Millisecond})

	err := c.Compare(context.Background(), models.ComparisonRequest{Prompt: "hello"}, func(models.StreamEvent) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompareDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"prompt must not be empty","code":400}}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: 5 * time.Millisecond})

	err := c.Compare(context.Background(), models.ComparisonRequest{}, func(models.StreamEvent) error {
		return nil
	})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "prompt must not be empty", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load(), "validation errors must not be retried")
}

func TestCompareHandlerAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range testEvents() {
			fmt.Fprint(w, sseFrame(t, ev))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	abort := errors.New("enough")
	err := c.Compare(context.Background(), models.ComparisonRequest{Prompt: "hello"}, func(models.StreamEvent) error {
		return abort
	})
	assert.ErrorIs(t, err, abort)
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"id":"gpt-4o","provider":"openai"}]}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	descriptors, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "gpt-4o", descriptors[0].ID)
	assert.Equal(t, models.ProviderOpenAI, descriptors[0].Provider)
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/history", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "hello", r.URL.Query().Get("search"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"records":[],"total":42}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	records, total, err := c.History(context.Background(), 2, 20, "hello")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 42, total)
}

func TestHistorySearchIsURLEncoded(t *testing.T) {
	search := "100% of A&B #1 works?"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, search, r.URL.Query().Get("search"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"records":[],"total":0}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	_, _, err := c.History(context.Background(), 1, 20, search)
	require.NoError(t, err)
}
