package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ints(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func TestPartition(t *testing.T) {
	batches := Partition(ints(2500), 1000)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 1000)
	assert.Len(t, batches[1], 1000)
	assert.Len(t, batches[2], 500)

	// Order is preserved across batch boundaries.
	assert.Equal(t, 0, batches[0][0])
	assert.Equal(t, 1000, batches[1][0])
	assert.Equal(t, 2499, batches[2][499])
}

func TestPartitionSingleBatch(t *testing.T) {
	assert.Len(t, Partition(ints(10), 0), 1)
	assert.Len(t, Partition(ints(10), 100), 1)
	assert.Nil(t, Partition([]int{}, 10))
}

func TestSchedulerProcessesAll(t *testing.T) {
	var processed atomic.Int32
	sched := NewScheduler[int](Options{Workers: 4, BatchSize: 7, Pause: -1}, zerolog.Nop())

	res := sched.Run(context.Background(), ints(50),
		func(ctx context.Context, item int) error {
			processed.Add(1)
			if item%10 == 3 {
				return errors.New("boom")
			}
			return nil
		},
		func(item int) string { return fmt.Sprintf("item-%d", item) },
	)

	assert.Equal(t, int32(50), processed.Load())
	assert.Equal(t, 45, res.Succeeded)
	assert.Len(t, res.Failures, 5)
	assert.False(t, res.Interrupted)
	assert.Zero(t, res.Remaining)
}

func TestSchedulerBatchOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	sched := NewScheduler[int](Options{Workers: 4, BatchSize: 10, Pause: -1}, zerolog.Nop())

	sched.Run(context.Background(), ints(30),
		func(ctx context.Context, item int) error {
			mu.Lock()
			order = append(order, item/10)
			mu.Unlock()
			return nil
		},
		func(item int) string { return "" },
	)

	// Batches run strictly in order: batch indices never decrease.
	require.Len(t, order, 30)
	for i := 1; i < len(order); i++ {
		assert.GreaterOrEqual(t, order[i], order[i-1])
	}
}

func TestSchedulerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var succeeded atomic.Int32
	sched := NewScheduler[int](Options{Workers: 1, BatchSize: 10, Pause: -1}, zerolog.Nop())

	res := sched.Run(ctx, ints(30),
		func(ctx context.Context, item int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if item == 0 {
				cancel()
			}
			succeeded.Add(1)
			return nil
		},
		func(item int) string { return fmt.Sprintf("item-%d", item) },
	)

	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Failures, "cancelled tasks are remaining work, not failures")
	assert.Equal(t, int(succeeded.Load()), res.Succeeded)
	assert.Equal(t, 30-res.Succeeded, res.Remaining)
	assert.GreaterOrEqual(t, res.Remaining, 20, "later batches must never start")
}

func TestSchedulerPauseBetweenBatches(t *testing.T) {
	start := time.Now()
	sched := NewScheduler[int](Options{Workers: 2, BatchSize: 5, Pause: 50 * time.Millisecond}, zerolog.Nop())

	sched.Run(context.Background(), ints(10),
		func(ctx context.Context, item int) error { return nil },
		func(item int) string { return "" },
	)

	// Two batches, one pause between them.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
