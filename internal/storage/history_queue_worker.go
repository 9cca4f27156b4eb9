package storage

import (
	"context"
	"fmt"
	"time"

	"modelarena/internal/models"
	"modelarena/internal/queue"
	"modelarena/internal/utils"
)

// HistoryQueueWorker persists comparison records asynchronously. Records are
// enqueued at joint completion and written to the database in batches, with
// retries and a dead letter queue for records that keep failing.
type HistoryQueueWorker struct {
	queue       queue.RecordQueue
	dlq         queue.DeadLetterQueue
	repo        *ComparisonRepository
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewHistoryQueueWorker creates a new history queue worker.
func NewHistoryQueueWorker(q queue.RecordQueue, dlq queue.DeadLetterQueue, repo *ComparisonRepository, config *queue.Config) *HistoryQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("history")
	}

	return &HistoryQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine.
func (w *HistoryQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *HistoryQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue hands a finalized comparison record to the worker. It returns once
// the record is queued; the database write happens in the background.
func (w *HistoryQueueWorker) Enqueue(ctx context.Context, rec *models.ComparisonRecord) error {
	return w.queue.Enqueue(ctx, rec)
}

// run is the main worker loop.
func (w *HistoryQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("history-worker", utils.Info)

	for {
		select {
		case <-w.stopChan:
			logger.Info("History worker stopping")
			return
		case <-ctx.Done():
			logger.Info("History worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

// processBatch drains up to one batch from the queue and writes it.
func (w *HistoryQueueWorker) processBatch(ctx context.Context, logger *utils.Logger) {
	records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logger.Error("Failed to dequeue comparison records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(records) == 0 {
		return
	}

	logger.Debug("Processing history batch", "count", len(records))

	if err := w.insertBatch(ctx, records, logger); err != nil {
		logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		for _, rec := range records {
			if err := w.processItem(ctx, rec, logger); err != nil {
				logger.Error("Failed to process comparison record", "id", rec.ID, "error", err)
			}
		}
	}
}

// insertBatch writes records in a single transaction.
func (w *HistoryQueueWorker) insertBatch(ctx context.Context, records []*models.ComparisonRecord, logger *utils.Logger) error {
	tx, err := w.repo.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if err := w.repo.CreateTx(ctx, tx, rec); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("Inserted batch successfully", "count", len(records))
	return nil
}

// processItem writes a single record with retries, parking it in the dead
// letter queue if all attempts fail.
func (w *HistoryQueueWorker) processItem(ctx context.Context, rec *models.ComparisonRecord, logger *utils.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			logger.Debug("Retrying comparison record", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		err := w.repo.Create(ctx, rec)
		if err == nil {
			logger.Debug("Comparison record inserted", "id", rec.ID)
			return nil
		}

		// A duplicate id means the record already committed; retrying
		// would never succeed and the insert is effectively done.
		if isDuplicate(err) {
			logger.Debug("Comparison record already exists", "id", rec.ID)
			return nil
		}

		lastErr = err
		logger.Error("Failed to insert comparison record", "attempt", attempt, "error", err)
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, rec, lastErr); err != nil {
			logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			logger.Warn("Comparison record moved to DLQ", "id", rec.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

// GetQueueLength returns the current queue length.
func (w *HistoryQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue.
func (w *HistoryQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a failed record from the dead letter queue.
func (w *HistoryQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID == id {
			if err := w.queue.Enqueue(ctx, dlItem.Record); err != nil {
				return fmt.Errorf("failed to re-enqueue item: %w", err)
			}
			if err := w.dlq.Remove(ctx, id); err != nil {
				return fmt.Errorf("failed to remove from DLQ: %w", err)
			}
			return nil
		}
	}

	return fmt.Errorf("item not found in dead letter queue")
}

// DirectSink writes records synchronously, with no queue in between. Useful
// for tests and minimal deployments.
type DirectSink struct {
	repo *ComparisonRepository
}

// NewDirectSink creates a sink that writes straight to the repository.
func NewDirectSink(repo *ComparisonRepository) *DirectSink {
	return &DirectSink{repo: repo}
}

// Enqueue writes the record immediately. A duplicate id is treated as
// already-committed and is not an error.
func (s *DirectSink) Enqueue(ctx context.Context, rec *models.ComparisonRecord) error {
	err := s.repo.Create(ctx, rec)
	if err != nil && isDuplicate(err) {
		return nil
	}
	return err
}
