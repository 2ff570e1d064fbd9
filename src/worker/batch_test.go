package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestBatchProcessesInOrder(t *testing.T) {
	paths := []string{"a.png", "b.png", "c.png"}

	var processed []string
	var reported []int
	err := NewBatch().Run(context.Background(), paths,
		func(ctx context.Context, path string) error {
			processed = append(processed, path)
			return nil
		},
		func(index int, path string, err error) {
			reported = append(reported, index)
			if err != nil {
				t.Errorf("unexpected item error for %s: %v", path, err)
			}
		})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(processed) != 3 || processed[0] != "a.png" || processed[2] != "c.png" {
		t.Errorf("processed = %v, expected original order", processed)
	}
	if len(reported) != 3 || reported[0] != 0 || reported[2] != 2 {
		t.Errorf("reported indexes = %v", reported)
	}
}

func TestBatchContinuesPastItemErrors(t *testing.T) {
	paths := []string{"ok.png", "missing.png", "also-ok.png"}

	var itemErrs []error
	err := NewBatch().Run(context.Background(), paths,
		func(ctx context.Context, path string) error {
			if path == "missing.png" {
				return fmt.Errorf("open %s: no such file", path)
			}
			return nil
		},
		func(index int, path string, err error) {
			itemErrs = append(itemErrs, err)
		})
	if err != nil {
		t.Fatalf("Run: %v, item failures must not abort the batch", err)
	}

	if len(itemErrs) != 3 {
		t.Fatalf("reported %d items, expected 3", len(itemErrs))
	}
	if itemErrs[0] != nil || itemErrs[1] == nil || itemErrs[2] != nil {
		t.Errorf("item errors = %v, expected only the middle item to fail", itemErrs)
	}
}

func TestBatchStopTakesEffectBetweenItems(t *testing.T) {
	b := NewBatch()
	paths := []string{"a", "b", "c"}

	var processed []string
	err := b.Run(context.Background(), paths,
		func(ctx context.Context, path string) error {
			processed = append(processed, path)
			if path == "a" {
				// Stop while the first item is in flight; it must still
				// finish and be reported.
				b.Stop()
			}
			return nil
		},
		nil)

	if !errors.Is(err, ErrStopped) {
		t.Errorf("Run = %v, expected ErrStopped", err)
	}
	if len(processed) != 1 || processed[0] != "a" {
		t.Errorf("processed = %v, expected only the in-flight item", processed)
	}
}

func TestBatchHonorsContextBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var processed int
	err := NewBatch().Run(ctx, []string{"a", "b"},
		func(ctx context.Context, path string) error {
			processed++
			cancel()
			return nil
		},
		nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, expected context.Canceled", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, expected 1", processed)
	}
}
