package worker

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"
)

// Job is one unit of work. It must honor ctx and return when done.
type Job func(ctx context.Context)

type pending struct {
	ctx context.Context
	run Job
}

// Pool is a fixed-size worker pool with a 1-slot input queue (strict
// back-pressure). Interactive use creates a 1-worker pool, so a second
// hotkey press while recognition runs gets dropped instead of queued
// behind it.
type Pool struct {
	jobs    chan pending
	wg      sync.WaitGroup
	timeout time.Duration
}

// New creates a worker pool. Size defaults to NumCPU when size <= 0.
// timeout bounds each job (0 means no deadline).
func New(size int, timeout time.Duration) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan pending, 1), timeout: timeout}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runOne(j)
			}
		}()
	}
}

func (p *Pool) runOne(j pending) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in worker job: %v", r)
		}
	}()

	ctx := j.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	j.run(ctx)
}

// Submit enqueues a job if the single-slot queue is free. Returns false
// if dropped.
func (p *Pool) Submit(ctx context.Context, run Job) bool {
	select {
	case p.jobs <- pending{ctx: ctx, run: run}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
