// Package queue buffers finalized comparison records between the streaming
// path and the database. The streaming path only pays the cost of an enqueue;
// a background worker drains the queue in batches.
//
// Two backends:
//   - memory: channel-based, no persistence, for standalone deployments
//     and tests
//   - Redis: list-based, survives restarts, supports distributed workers
//
// Records that keep failing to persist are parked in a dead letter queue so
// they can be inspected and retried.
package queue

import (
	"context"
	"time"

	"modelarena/internal/models"
)

// RecordQueue buffers comparison records awaiting persistence.
type RecordQueue interface {
	// Enqueue adds a record to the queue
	Enqueue(ctx context.Context, rec *models.ComparisonRecord) error

	// Dequeue retrieves up to maxRecords records, blocking until at least
	// one is available or the context is cancelled
	Dequeue(ctx context.Context, maxRecords int) ([]*models.ComparisonRecord, error)

	// DequeueWithTimeout retrieves up to maxRecords records, returning an
	// empty slice if none arrive before the timeout
	DequeueWithTimeout(ctx context.Context, maxRecords int, timeout time.Duration) ([]*models.ComparisonRecord, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds records whose persistence attempts were exhausted.
type DeadLetterQueue interface {
	// Add parks a failed record together with its last error
	Add(ctx context.Context, rec *models.ComparisonRecord, err error) error

	// List retrieves up to maxItems parked records (0 means all)
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes a parked record by dead letter id
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is one parked record. ID identifies the dead letter entry,
// not the comparison record inside it.
type DeadLetterItem struct {
	ID        string                   `json:"id"`
	Record    *models.ComparisonRecord `json:"record"`
	Error     string                   `json:"error"`
	Timestamp time.Time                `json:"timestamp"`
	Retries   int                      `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of records to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per record
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis indicates whether to use Redis or the in-memory queue
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true)
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true)
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true)
	RedisDB int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}
