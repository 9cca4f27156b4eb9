package spend

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTrackerAccumulates(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	total, err := tracker.MonthToDate(ctx)
	if err != nil {
		t.Fatalf("MonthToDate failed: %v", err)
	}
	if total != 0 {
		t.Errorf("expected zero initial spend, got %f", total)
	}

	if err := tracker.AddUsage(ctx, 0.002); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}
	if err := tracker.AddUsage(ctx, 0.003); err != nil {
		t.Fatalf("AddUsage failed: %v", err)
	}

	total, err = tracker.MonthToDate(ctx)
	if err != nil {
		t.Fatalf("MonthToDate failed: %v", err)
	}
	if total < 0.0049 || total > 0.0051 {
		t.Errorf("expected spend near 0.005, got %f", total)
	}
}

func TestMonthKeyFormat(t *testing.T) {
	at := time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC)
	if got := monthOf(at); got != "2025:03" {
		t.Errorf("expected 2025:03, got %s", got)
	}
}
