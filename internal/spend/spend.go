package spend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker accumulates the running cost of completed comparisons.
type Tracker interface {
	// AddUsage adds the cost of one completed comparison
	AddUsage(ctx context.Context, costUSD float64) error

	// MonthToDate returns the accumulated spend for the current month
	MonthToDate(ctx context.Context) (float64, error)
}

// MemoryTracker keeps month totals in process memory. Used when Redis is not
// configured; totals reset on restart.
type MemoryTracker struct {
	mu     sync.Mutex
	totals map[string]float64
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{totals: make(map[string]float64)}
}

func (t *MemoryTracker) AddUsage(ctx context.Context, costUSD float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals[monthOf(time.Now())] += costUSD
	return nil
}

func (t *MemoryTracker) MonthToDate(ctx context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals[monthOf(time.Now())], nil
}

// RedisTracker accumulates spend in Redis so totals survive restarts and are
// shared between instances.
type RedisTracker struct {
	redis *redis.Client
}

// NewRedisTracker creates a Redis-backed spend tracker.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{redis: client}
}

// AddUsage increments the current month's total atomically.
func (t *RedisTracker) AddUsage(ctx context.Context, costUSD float64) error {
	key := t.monthlyKey(time.Now())

	script := redis.NewScript(`
		local key = KEYS[1]
		local cost = tonumber(ARGV[1])
		local ttl = tonumber(ARGV[2])

		local current = tonumber(redis.call('GET', key)) or 0
		local new_total = current + cost

		redis.call('SET', key, new_total, 'EX', ttl)
		return tostring(new_total)
	`)

	// Keep data for 2 months
	ttl := 60 * 24 * 60 * 60

	if _, err := script.Run(ctx, t.redis, []string{key}, costUSD, ttl).Result(); err != nil {
		return fmt.Errorf("failed to add usage: %w", err)
	}
	return nil
}

// MonthToDate returns the accumulated spend for the current month.
func (t *RedisTracker) MonthToDate(ctx context.Context) (float64, error) {
	val, err := t.redis.Get(ctx, t.monthlyKey(time.Now())).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get monthly spending: %w", err)
	}
	return val, nil
}

func (t *RedisTracker) monthlyKey(now time.Time) string {
	return fmt.Sprintf("spend:%s", monthOf(now))
}

func monthOf(now time.Time) string {
	return fmt.Sprintf("%d:%02d", now.Year(), int(now.Month()))
}
