package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelarena/internal/models"
)

// MemoryQueue buffers records in a channel. Records are handed over by
// pointer, so nothing is serialized and nothing survives a restart.
type MemoryQueue struct {
	records chan *models.ComparisonRecord
	mu      sync.RWMutex
	closed  bool
	config  *Config
}

// NewMemoryQueue creates a new in-memory record queue.
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		records: make(chan *models.ComparisonRecord, config.BatchSize*10), // Buffer for 10 batches
		config:  config,
	}
}

// Enqueue adds a record to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, rec *models.ComparisonRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.records <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks for the first record, then collects more without blocking.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxRecords int) ([]*models.ComparisonRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var records []*models.ComparisonRecord

	select {
	case rec := <-q.records:
		records = append(records, rec)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.collectMore(records, maxRecords), nil
}

// DequeueWithTimeout waits up to timeout for the first record, then collects
// more without blocking. An empty slice means the timeout expired.
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxRecords int, timeout time.Duration) ([]*models.ComparisonRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var records []*models.ComparisonRecord
	deadline := time.After(timeout)

	select {
	case rec := <-q.records:
		records = append(records, rec)
	case <-deadline:
		return records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.collectMore(records, maxRecords), nil
}

// collectMore drains already-buffered records up to maxRecords.
func (q *MemoryQueue) collectMore(records []*models.ComparisonRecord, maxRecords int) []*models.ComparisonRecord {
	for len(records) < maxRecords {
		select {
		case rec := <-q.records:
			records = append(records, rec)
		default:
			return records
		}
	}
	return records
}

// Length returns the number of buffered records.
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.records), nil
}

// Close shuts down the queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.records)
	return nil
}

// MemoryDeadLetterQueue keeps parked records in a slice.
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue.
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add parks a failed record with its last error.
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, rec *models.ComparisonRecord, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, DeadLetterItem{
		ID:        uuid.NewString(),
		Record:    rec,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	return nil
}

// List retrieves up to maxItems parked records (0 means all).
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove removes a parked record by dead letter id.
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue.
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}
