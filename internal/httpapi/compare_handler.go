package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"modelarena/internal/models"
	"modelarena/internal/orchestrator"
	"modelarena/internal/pricing"
	"modelarena/internal/providers"
)

// handleCompare runs one comparison and streams the merged event sequence to
// the client as Server-Sent Events. Validation failures are plain JSON 400s;
// once streaming starts, failures arrive as in-stream error events.
func (d *Dependencies) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reqID := uuid.New().String()

	events, err := d.Orchestrator.Run(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyPrompt),
			errors.Is(err, pricing.ErrUnknownModel):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, providers.ErrProviderNotConfigured):
			writeJSONError(w, http.StatusBadGateway, err.Error())
		default:
			d.Logger.Error("Failed to start comparison", "request_id", reqID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		// Headers are already out; nothing sensible left to send.
		d.Logger.Error("Streaming not supported by response writer", "request_id", reqID)
		return
	}

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			d.Logger.Error("Failed to marshal stream event", "request_id", reqID, "error", err)
			continue
		}

		if _, err := w.Write([]byte("data: ")); err != nil {
			break
		}
		if _, err := w.Write(data); err != nil {
			break
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			break
		}
		flusher.Flush()
	}

	// The channel closing means both slots are terminal and the outcome is
	// committed; a broken connection just means nobody reads the marker.
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}
