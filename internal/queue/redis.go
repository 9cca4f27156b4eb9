package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"modelarena/internal/models"
)

// RedisQueue buffers records in a Redis list. Records are stored as JSON, so
// queued records survive restarts and can be drained by another instance.
type RedisQueue struct {
	client *redis.Client
	config *Config
	qKey   string
}

// NewRedisQueue creates a new Redis-backed record queue.
func NewRedisQueue(config *Config) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client: client,
		config: config,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}, nil
}

// Enqueue serializes the record and pushes it onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, rec *models.ComparisonRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := q.client.RPush(ctx, q.qKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}

	return nil
}

// Dequeue blocks for the first record, then collects more without blocking.
func (q *RedisQueue) Dequeue(ctx context.Context, maxRecords int) ([]*models.ComparisonRecord, error) {
	result, err := q.client.BLPop(ctx, 0, q.qKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the payload
	rec, err := decodeRecord(result[1])
	if err != nil {
		return nil, err
	}

	return q.collectMore(ctx, []*models.ComparisonRecord{rec}, maxRecords), nil
}

// DequeueWithTimeout waits up to timeout for the first record, then collects
// more without blocking. An empty slice means the timeout expired.
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxRecords int, timeout time.Duration) ([]*models.ComparisonRecord, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if err == redis.Nil {
		return []*models.ComparisonRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	rec, err := decodeRecord(result[1])
	if err != nil {
		return nil, err
	}

	return q.collectMore(ctx, []*models.ComparisonRecord{rec}, maxRecords), nil
}

// collectMore drains already-queued records up to maxRecords. A pop or decode
// failure ends the batch with what was collected so far.
func (q *RedisQueue) collectMore(ctx context.Context, records []*models.ComparisonRecord, maxRecords int) []*models.ComparisonRecord {
	for len(records) < maxRecords {
		result, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			return records
		}
		rec, err := decodeRecord(result)
		if err != nil {
			return records
		}
		records = append(records, rec)
	}
	return records
}

func decodeRecord(data string) (*models.ComparisonRecord, error) {
	var rec models.ComparisonRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Length returns the current queue length.
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close shuts down the queue.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// RedisDeadLetterQueue keeps parked records in a Redis hash keyed by dead
// letter id.
type RedisDeadLetterQueue struct {
	client *redis.Client
	dlKey  string
}

// NewRedisDeadLetterQueue creates a new Redis-backed dead letter queue.
func NewRedisDeadLetterQueue(config *Config) (*RedisDeadLetterQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDeadLetterQueue{
		client: client,
		dlKey:  fmt.Sprintf("dlq:%s", config.QueueName),
	}, nil
}

// Add parks a failed record with its last error.
func (q *RedisDeadLetterQueue) Add(ctx context.Context, rec *models.ComparisonRecord, cause error) error {
	item := DeadLetterItem{
		ID:        uuid.NewString(),
		Record:    rec,
		Error:     cause.Error(),
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", err)
	}

	if err := q.client.HSet(ctx, q.dlKey, item.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}

	return nil
}

// List retrieves up to maxItems parked records (0 means all).
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var item DeadLetterItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			continue // Skip malformed items
		}
		items = append(items, item)

		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}

	return items, nil
}

// Remove removes a parked record by dead letter id.
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	if err := q.client.HDel(ctx, q.dlKey, id).Err(); err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	return nil
}

// Close shuts down the dead letter queue.
func (q *RedisDeadLetterQueue) Close() error {
	return q.client.Close()
}
