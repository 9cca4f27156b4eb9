package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"modelarena/internal/models"
)

func queuedRecord(prompt string) *models.ComparisonRecord {
	text1 := "first answer"
	text2 := "second answer"
	cost := 0.000125
	return &models.ComparisonRecord{
		ID:         uuid.New(),
		Prompt:     prompt,
		ModelID1:   "gpt-4o",
		ModelID2:   "claude-3-5-sonnet-20241022",
		FinalText1: &text1,
		FinalText2: &text2,
		Cost1:      &cost,
		Cost2:      &cost,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMemoryQueueCarriesRecordPointer(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	rec := queuedRecord("what is the capital of France")

	if err := q.Enqueue(ctx, rec); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	records, err := q.Dequeue(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	// The memory queue hands back the same pointer, nothing is serialized
	if records[0] != rec {
		t.Error("dequeued record is not the enqueued pointer")
	}
}

func TestMemoryQueueBatchDrain(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if err := q.Enqueue(ctx, queuedRecord(fmt.Sprintf("prompt %d", i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	first, err := q.Dequeue(ctx, 5)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("expected batch of 5, got %d", len(first))
	}
	if first[0].Prompt != "prompt 0" || first[4].Prompt != "prompt 4" {
		t.Errorf("batch out of order: %s .. %s", first[0].Prompt, first[4].Prompt)
	}

	rest, err := q.Dequeue(ctx, 5)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected remaining 2 records, got %d", len(rest))
	}
	if rest[0].Prompt != "prompt 5" {
		t.Errorf("expected prompt 5 first, got %s", rest[0].Prompt)
	}
}

func TestMemoryQueueDequeueTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	records, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty batch on timeout, got %d records", len(records))
	}
}

func TestMemoryQueueLength(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, queuedRecord("length check")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 3 {
		t.Errorf("expected length 3, got %d", length)
	}
}

func TestMemoryQueueClosed(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Closing twice is a no-op
	if err := q.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	ctx := context.Background()
	if err := q.Enqueue(ctx, queuedRecord("late")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed from Enqueue, got %v", err)
	}
	if _, err := q.Dequeue(ctx, 1); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed from Dequeue, got %v", err)
	}
	if _, err := q.Length(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed from Length, got %v", err)
	}
}

func TestMemoryQueueEnqueueRespectsContext(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.BatchSize = 0 // Unbuffered channel; Enqueue blocks with no consumer
	q := NewMemoryQueue(cfg)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, queuedRecord("blocked"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()
	recA := queuedRecord("parked A")
	recB := queuedRecord("parked B")

	if err := dlq.Add(ctx, recA, errors.New("database unreachable")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := dlq.Add(ctx, recB, errors.New("database unreachable")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 parked records, got %d", len(items))
	}
	if items[0].ID == items[1].ID {
		t.Error("dead letter ids must be unique")
	}
	if items[0].Record != recA {
		t.Error("parked record is not the original pointer")
	}
	if items[0].Error != "database unreachable" {
		t.Errorf("unexpected parked error: %s", items[0].Error)
	}

	limited, err := dlq.List(ctx, 1)
	if err != nil {
		t.Fatalf("List with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 item with limit, got %d", len(limited))
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, items[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound for removed id, got %v", err)
	}

	remaining, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Record.Prompt != "parked B" {
		t.Errorf("unexpected remaining items: %+v", remaining)
	}
}
