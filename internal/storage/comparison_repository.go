package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"modelarena/internal/models"
)

// ComparisonRepository persists completed comparisons. Records are
// append-only: they are created once at joint completion and never updated.
type ComparisonRepository struct {
	db *DB
}

// NewComparisonRepository creates a new comparison repository.
func NewComparisonRepository(db *DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// Create appends one record. An existing id is an error, never an overwrite.
func (r *ComparisonRepository) Create(ctx context.Context, rec *models.ComparisonRecord) error {
	return r.insert(ctx, r.db.conn, rec)
}

// CreateTx appends one record within an existing transaction.
func (r *ComparisonRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, rec *models.ComparisonRecord) error {
	return r.insert(ctx, tx, rec)
}

func (r *ComparisonRepository) insert(ctx context.Context, ext sqlx.ExtContext, rec *models.ComparisonRecord) error {
	query := ext.Rebind(`INSERT INTO comparisons
		(id, prompt, model_id_1, model_id_2,
		 final_text_1, final_text_2, cost_1, cost_2, error_1, error_2, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := ext.ExecContext(ctx, query,
		rec.ID.String(),
		rec.Prompt,
		rec.ModelID1,
		rec.ModelID2,
		rec.FinalText1,
		rec.FinalText2,
		rec.Cost1,
		rec.Cost2,
		rec.Error1,
		rec.Error2,
		rec.CreatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ID)
		}
		return fmt.Errorf("failed to insert comparison record: %w", err)
	}
	return nil
}

// GetByID returns one record.
func (r *ComparisonRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ComparisonRecord, error) {
	query := r.db.conn.Rebind(`SELECT * FROM comparisons WHERE id = ?`)

	var rec models.ComparisonRecord
	if err := r.db.conn.GetContext(ctx, &rec, query, id.String()); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to get comparison record: %w", err)
	}
	return &rec, nil
}

// List returns one page of records, newest first, with the total count for
// pagination. A non-empty search filters by substring over the prompt and
// both response texts.
func (r *ComparisonRepository) List(ctx context.Context, page, pageSize int, search string) ([]models.ComparisonRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	where := ""
	var args []interface{}
	if search != "" {
		where = ` WHERE prompt LIKE ? OR final_text_1 LIKE ? OR final_text_2 LIKE ?`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	countQuery := r.db.conn.Rebind("SELECT COUNT(*) FROM comparisons" + where)
	if err := r.db.conn.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count comparison records: %w", err)
	}

	listQuery := r.db.conn.Rebind(
		"SELECT * FROM comparisons" + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?")
	listArgs := append(args, pageSize, (page-1)*pageSize)

	records := []models.ComparisonRecord{}
	if err := r.db.conn.SelectContext(ctx, &records, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list comparison records: %w", err)
	}

	return records, total, nil
}

// DeleteByID removes one record. Deleting a non-existent id is not an error.
func (r *ComparisonRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	query := r.db.conn.Rebind(`DELETE FROM comparisons WHERE id = ?`)
	if _, err := r.db.conn.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to delete comparison record: %w", err)
	}
	return nil
}

// DeleteMany removes a batch of records. Idempotent like DeleteByID.
func (r *ComparisonRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	query, args, err := sqlx.In(`DELETE FROM comparisons WHERE id IN (?)`, strIDs)
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	query = r.db.conn.Rebind(query)
	if _, err := r.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete comparison records: %w", err)
	}
	return nil
}

// ModelUsage counts how often one model appeared in stored comparisons.
type ModelUsage struct {
	ModelID string `db:"model_id" json:"modelId"`
	Count   int    `db:"usage_count" json:"count"`
}

// HistoryStats aggregates the stored history.
type HistoryStats struct {
	TotalComparisons int          `json:"totalComparisons"`
	TotalCostUSD     float64      `json:"totalCostUsd"`
	AverageCostUSD   float64      `json:"averageCostUsd"`
	MostUsedModels   []ModelUsage `json:"mostUsedModels"`
}

// Stats computes aggregate statistics over all stored comparisons.
func (r *ComparisonRepository) Stats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{MostUsedModels: []ModelUsage{}}

	var totals struct {
		Count int     `db:"record_count"`
		Cost  float64 `db:"total_cost"`
	}
	totalsQuery := `SELECT
		COUNT(*) AS record_count,
		COALESCE(SUM(COALESCE(cost_1, 0) + COALESCE(cost_2, 0)), 0) AS total_cost
		FROM comparisons`
	if err := r.db.conn.GetContext(ctx, &totals, totalsQuery); err != nil {
		return nil, fmt.Errorf("failed to compute history totals: %w", err)
	}

	stats.TotalComparisons = totals.Count
	stats.TotalCostUSD = totals.Cost
	if totals.Count > 0 {
		stats.AverageCostUSD = totals.Cost / float64(totals.Count)
	}

	usageQuery := `SELECT model_id, COUNT(*) AS usage_count FROM (
			SELECT model_id_1 AS model_id FROM comparisons
			UNION ALL
			SELECT model_id_2 AS model_id FROM comparisons
		) model_mentions
		GROUP BY model_id
		ORDER BY usage_count DESC, model_id ASC
		LIMIT 5`
	if err := r.db.conn.SelectContext(ctx, &stats.MostUsedModels, usageQuery); err != nil {
		return nil, fmt.Errorf("failed to compute model usage: %w", err)
	}

	return stats, nil
}
