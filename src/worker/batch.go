package worker

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrStopped reports a batch ended early by Stop.
var ErrStopped = errors.New("batch stopped")

// BatchFunc processes one file of a batch.
type BatchFunc func(ctx context.Context, path string) error

// Batch runs files strictly one at a time on the calling goroutine.
// Stop is advisory: it is honored between items, so the in-flight item
// always finishes.
type Batch struct {
	stopped atomic.Bool
}

func NewBatch() *Batch {
	return &Batch{}
}

// Stop requests an early end after the current item.
func (b *Batch) Stop() {
	b.stopped.Store(true)
}

// Run processes each path in order. report is invoked after every item
// with that item's error, if any; per-item failures never abort the
// batch. Run returns ErrStopped or the context error when it ends early.
func (b *Batch) Run(ctx context.Context, paths []string, process BatchFunc, report func(index int, path string, err error)) error {
	for i, path := range paths {
		if b.stopped.Load() {
			return ErrStopped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := process(ctx, path)
		if report != nil {
			report(i, path, err)
		}
	}
	return nil
}
