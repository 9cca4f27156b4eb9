package httpapi

import (
	"encoding/json"
	"net/http"

	"modelarena/internal/models"
)

// handleModels serves GET /api/models: the selectable catalog.
func (d *Dependencies) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]models.ModelDescriptor{
		"models": d.Catalog.List(),
	})
}

// handleHealth serves GET /health. Degraded dependencies are reported but do
// not fail the check; the streaming path works without Redis.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if err := d.DB.Health(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	if d.Redis != nil {
		status["redis"] = "ok"
		if err := d.Redis.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		}
	}

	writeJSON(w, code, status)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeJSONError writes a JSON error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    statusCode,
		},
	}

	_ = json.NewEncoder(w).Encode(errorResp)
}
