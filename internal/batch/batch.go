package batch

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
)

// Failure records one item that could not be processed.
type Failure struct {
	// Locator identifies the failed item (URL or path).
	Locator string

	// Err is the terminal error after retries were exhausted.
	Err error
}

// Result is the terminal state of a scheduler run.
type Result struct {
	// Succeeded counts items that completed (including skips).
	Succeeded int

	// Failures lists items that terminally failed.
	Failures []Failure

	// Interrupted is true when cancellation stopped the run before
	// all batches were dispatched.
	Interrupted bool

	// Remaining counts items never submitted because of cancellation.
	Remaining int
}

// Options configures a scheduler.
type Options struct {
	// Workers caps the pool size per batch. The effective size is
	// min(Workers, available parallelism).
	// Default: 4
	Workers int

	// BatchSize is the number of items per batch. Zero or negative
	// means one batch for the whole list.
	BatchSize int

	// Pause is the fixed delay between batches.
	// Default: 1s. Set negative to disable.
	Pause time.Duration
}

// Task processes one item. A nil error counts as success.
type Task[T any] func(ctx context.Context, item T) error

// Locate renders an item as a locator string for failure reporting.
type Locate[T any] func(item T) string

// Scheduler runs a work list in ordered batches over a bounded pool.
type Scheduler[T any] struct {
	opts Options
	log  zerolog.Logger
}

// NewScheduler creates a scheduler with the given options.
func NewScheduler[T any](opts Options, log zerolog.Logger) *Scheduler[T] {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Pause == 0 {
		opts.Pause = time.Second
	}
	return &Scheduler[T]{opts: opts, log: log}
}

// Partition slices items into batches of at most size elements,
// preserving order. A non-positive size yields a single batch.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Run processes items batch by batch and returns the aggregate result.
// It honors ctx between batch starts and between item submissions;
// in-flight items run to completion.
func (s *Scheduler[T]) Run(ctx context.Context, items []T, task Task[T], locate Locate[T]) Result {
	var res Result

	workers := s.opts.Workers
	if max := runtime.NumCPU(); workers > max {
		workers = max
	}

	batches := Partition(items, s.opts.BatchSize)
	submitted := 0

	for i, b := range batches {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		s.log.Info().
			Int("batch", i+1).
			Int("total_batches", len(batches)).
			Int("items", len(b)).
			Msg("processing batch")

		n, canceled, interrupted := s.runBatch(ctx, b, workers, task, locate, &res)
		submitted += n - canceled
		if interrupted {
			res.Interrupted = true
			break
		}

		if s.opts.Pause > 0 && i < len(batches)-1 {
			select {
			case <-ctx.Done():
				res.Interrupted = true
			case <-time.After(s.opts.Pause):
			}
			if res.Interrupted {
				break
			}
		}
	}

	res.Remaining = len(items) - submitted
	return res
}

// runBatch dispatches one batch into a fresh pool and waits for it to
// drain. In-flight tasks killed by cancellation count as remaining
// work, not as failures.
func (s *Scheduler[T]) runBatch(ctx context.Context, items []T, workers int, task Task[T], locate Locate[T], res *Result) (submitted, canceled int, interrupted bool) {
	pool := workerpool.New(workers)

	var mu sync.Mutex
	for _, item := range items {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		item := item
		submitted++
		pool.Submit(func() {
			err := task(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Succeeded++
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				canceled++
			default:
				res.Failures = append(res.Failures, Failure{Locator: locate(item), Err: err})
			}
		})
	}

	pool.StopWait()
	return submitted, canceled, interrupted
}
