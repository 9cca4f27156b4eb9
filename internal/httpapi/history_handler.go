package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"modelarena/internal/models"
	"modelarena/internal/storage"
)

// historyListResponse is the paginated envelope for GET /api/history.
type historyListResponse struct {
	Records  []models.ComparisonRecord `json:"records"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
}

// handleHistory serves GET /api/history with page, pageSize and search query
// parameters.
func (d *Dependencies) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)
	if pageSize > 100 {
		pageSize = 100
	}
	search := r.URL.Query().Get("search")

	records, total, err := d.History.List(r.Context(), page, pageSize, search)
	if err != nil {
		d.Logger.Error("Failed to list history", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, historyListResponse{
		Records:  records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// handleHistoryByID serves DELETE /api/history/{id}.
func (d *Dependencies) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/history/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	// Deleting an id that is absent is a success; the end state is the same.
	if err := d.History.DeleteByID(r.Context(), id); err != nil {
		d.Logger.Error("Failed to delete history record", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHistoryBulkDelete serves POST /api/history/delete with {"ids": [...]}.
func (d *Dependencies) handleHistoryBulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ids := make([]uuid.UUID, 0, len(body.IDs))
	for _, s := range body.IDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid record id: "+s)
			return
		}
		ids = append(ids, id)
	}

	if err := d.History.DeleteMany(r.Context(), ids); err != nil {
		d.Logger.Error("Failed to bulk delete history records", "count", len(ids), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to delete records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(ids)})
}

// statsResponse extends repository aggregates with the month-to-date spend
// counter.
type statsResponse struct {
	TotalComparisons int                  `json:"totalComparisons"`
	TotalCostUSD     float64              `json:"totalCostUsd"`
	AverageCostUSD   float64              `json:"averageCostUsd"`
	MostUsedModels   []storage.ModelUsage `json:"mostUsedModels"`
	MonthToDateUSD   float64              `json:"monthToDateUsd"`
}

// handleHistoryStats serves GET /api/history/stats.
func (d *Dependencies) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := d.History.Stats(r.Context())
	if err != nil {
		d.Logger.Error("Failed to compute history stats", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	monthToDate, err := d.Spend.MonthToDate(r.Context())
	if err != nil {
		d.Logger.Warn("Failed to read month-to-date spend", "error", err)
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalComparisons: stats.TotalComparisons,
		TotalCostUSD:     stats.TotalCostUSD,
		AverageCostUSD:   stats.AverageCostUSD,
		MostUsedModels:   stats.MostUsedModels,
		MonthToDateUSD:   monthToDate,
	})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return defaultValue
	}
	return n
}
